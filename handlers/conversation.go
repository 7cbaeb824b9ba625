package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"docchat-service/assistant"
	"docchat-service/config"
	"docchat-service/events"
	"docchat-service/metrics"
	"docchat-service/models"

	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

func (h *Handler) assistantReady() bool {
	return h.cfg.AssistantMode != config.AssistantOpenAI || h.cfg.AssistantConfigured()
}

func (h *Handler) assistantContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.AssistantTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.cfg.AssistantTimeout)
}

// CreateThread handles POST /api/thread - starts a conversation, optionally bound to a chat
func (h *Handler) CreateThread(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	var req models.ThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}
	if req.ChatID != "" {
		if _, found := h.store.GetChat(identity.Username, req.ChatID); !found {
			writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Chat not found"))
			return
		}
	}

	actx, cancel := h.assistantContext(ctx)
	defer cancel()
	threadID, err := h.assistant.CreateConversation(actx)
	if err != nil {
		logRequest(ctx, "error", "Error creating thread", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errs.NewInternalServerError("Error creating thread"))
		return
	}

	if req.ChatID != "" {
		if err := h.store.BindThread(identity.Username, req.ChatID, threadID); err != nil {
			internalError(ctx, w, "Error creating thread", err)
			return
		}
		h.invalidateChats(identity.Username)
	}

	logRequest(ctx, "info", "Thread created", zap.String("thread_id", threadID), zap.String("chat_id", req.ChatID))
	writeJSON(w, http.StatusOK, models.ThreadResponse{ThreadID: threadID})
}

// SendMessage handles POST /api/chat - forwards the message on the chat's conversation
func (h *Handler) SendMessage(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Message cannot be empty"))
		return
	}
	if !h.assistantReady() {
		logRequest(ctx, "error", "Assistant not configured")
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Assistant not configured. Please set ASSISTANT_ID environment variable."))
		return
	}

	chat, found := h.store.GetChat(identity.Username, req.ChatID)
	if !found {
		logRequest(ctx, "info", "Chat not found", zap.String("chat_id", req.ChatID))
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Chat not found"))
		return
	}

	actx, cancel := h.assistantContext(ctx)
	defer cancel()

	threadID := req.ThreadID
	if threadID == "" && chat.ThreadID != nil {
		threadID = *chat.ThreadID
	}
	if threadID == "" {
		created, err := h.assistant.CreateConversation(actx)
		if err != nil {
			logRequest(ctx, "error", "Error creating thread", zap.String("chat_id", req.ChatID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, models.ChatMessageResponse{Reply: assistant.ErrorReply})
			return
		}
		threadID = created
		if err := h.store.BindThread(identity.Username, req.ChatID, threadID); err != nil {
			internalError(ctx, w, "Error processing message", err)
			return
		}
	}

	reply := h.assistant.SendMessage(actx, threadID, req.Message)
	metrics.MessagesSent.Inc()

	// the reply is still returned if the chat vanished or could not be saved meanwhile
	if err := h.store.RecordMessage(identity.Username, req.ChatID); err != nil {
		logRequest(ctx, "error", "Failed to record message", zap.String("chat_id", req.ChatID), zap.Error(err))
	}
	h.invalidateChats(identity.Username)
	events.Emit(ctx, h.publisher, events.New(events.TypeMessageSent, identity.Username, req.ChatID))
	logRequest(ctx, "info", "Message answered", zap.String("chat_id", req.ChatID), zap.String("thread_id", threadID))

	writeJSON(w, http.StatusOK, models.ChatMessageResponse{Reply: reply, ThreadID: threadID})
}
