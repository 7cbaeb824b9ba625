package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat-service/events"
	"docchat-service/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const chatListTTL = 5 * time.Minute

func chatVersionKey(username string) string {
	return "chatver:" + username
}

// chatListKey names the cached listing for the user's current chat version.
// Call it before reading the store: a listing built from a read that raced a
// mutation lands under the retired version and is never served.
func (h *Handler) chatListKey(username string) string {
	version := "0"
	if v, err := h.cache.Get(chatVersionKey(username)); err == nil {
		if s, ok := v.(string); ok && s != "" {
			version = s
		}
	}
	return "chats:" + username + ":" + version
}

// invalidateChats moves the user to a new listing version after any chat mutation
func (h *Handler) invalidateChats(username string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(chatVersionKey(username), uuid.NewString(), 0); err != nil {
		logger.Error("Failed to invalidate chat listing", zap.String("username", username), zap.Error(err))
	}
}

// CreateChat handles POST /api/chats
func (h *Handler) CreateChat(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	var req models.CreateChatRequest
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}

	chatID, err := h.store.CreateChat(identity.Username, req.Title)
	if err != nil {
		internalError(ctx, w, "Failed to create chat", err)
		return
	}
	chat, found := h.store.GetChat(identity.Username, chatID)
	if !found {
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Failed to create chat"))
		return
	}

	h.invalidateChats(identity.Username)
	events.Emit(ctx, h.publisher, events.New(events.TypeChatCreated, identity.Username, chatID))
	logRequest(ctx, "info", "Chat created", zap.String("chat_id", chatID))

	writeJSON(w, http.StatusOK, models.NewChatResponse(chat))
}

// ListChats handles GET /api/chats - most recent activity first
func (h *Handler) ListChats(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	var cacheKey string
	if h.cache != nil {
		cacheKey = h.chatListKey(identity.Username)
		if cached, err := h.cache.Get(cacheKey); err == nil {
			var body []byte
			switch v := cached.(type) {
			case string:
				body = []byte(v)
			case []byte:
				body = v
			}
			if body != nil {
				logRequest(ctx, "debug", "Serving chats from cache")
				w.Header().Set("Content-Type", "application/json")
				w.Write(body)
				return
			}
		}
	}

	sorted := models.SortedChats(h.store.ListChats(identity.Username))
	resp := models.ChatListResponse{Chats: make([]models.ChatResponse, 0, len(sorted))}
	for _, c := range sorted {
		resp.Chats = append(resp.Chats, models.NewChatResponse(c))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		internalError(ctx, w, "Error getting chats", err)
		return
	}
	if h.cache != nil {
		h.cache.Set(cacheKey, string(body), chatListTTL)
	}

	logRequest(ctx, "info", "Chats retrieved successfully", zap.Int("count", len(resp.Chats)))

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// DeleteChat handles DELETE /api/chats/{chat_id}
func (h *Handler) DeleteChat(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}
	chatID := mux.Vars(r)["chat_id"]

	deleted, err := h.store.DeleteChat(identity.Username, chatID)
	if err != nil {
		internalError(ctx, w, "Error deleting chat", err)
		return
	}
	if !deleted {
		logRequest(ctx, "info", "Chat not found", zap.String("chat_id", chatID))
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Chat not found"))
		return
	}

	h.invalidateChats(identity.Username)
	events.Emit(ctx, h.publisher, events.New(events.TypeChatDeleted, identity.Username, chatID))
	logRequest(ctx, "info", "Chat deleted", zap.String("chat_id", chatID))

	writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Chat deleted successfully"})
}

// RenameChat handles PUT /api/chats/{chat_id}/title
func (h *Handler) RenameChat(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}
	chatID := mux.Vars(r)["chat_id"]

	var req models.RenameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Title is required"))
		return
	}

	renamed, err := h.store.RenameChat(identity.Username, chatID, req.Title)
	if err != nil {
		internalError(ctx, w, "Error updating chat title", err)
		return
	}
	if !renamed {
		logRequest(ctx, "info", "Chat not found", zap.String("chat_id", chatID))
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Chat not found"))
		return
	}

	h.invalidateChats(identity.Username)
	logRequest(ctx, "info", "Chat title updated", zap.String("chat_id", chatID))

	writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Chat title updated successfully"})
}
