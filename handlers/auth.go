package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"docchat-service/events"
	"docchat-service/metrics"
	"docchat-service/models"
	"docchat-service/store"

	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// Messages returned in AuthResponse for business failures
const (
	msgUsernameTaken      = "Username already exists"
	msgEmailTaken         = "Email already exists"
	msgInvalidCredentials = "Invalid username or password"
	msgAccountDeactivated = "Account is deactivated"
)

// Register handles POST /api/auth/register - creates the account and logs it in
func (h *Handler) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}

	logRequest(ctx, "info", "Registering user", zap.String("username", req.Username), zap.String("email", req.Email))

	userID, err := h.store.Register(req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, store.ErrValidation):
		metrics.AuthAttempts.WithLabelValues("register", "invalid").Inc()
		logRequest(ctx, "error", "Missing required fields", zap.String("username", req.Username))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Username, email, and password are required"))
		return
	case errors.Is(err, store.ErrDuplicateUsername):
		h.authFailed(ctx, w, "register", msgUsernameTaken)
		return
	case errors.Is(err, store.ErrDuplicateEmail):
		h.authFailed(ctx, w, "register", msgEmailTaken)
		return
	case err != nil:
		metrics.AuthAttempts.WithLabelValues("register", metrics.ResultError).Inc()
		internalError(ctx, w, "Registration failed", err)
		return
	}

	token, err := h.store.GrantSession(req.Username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", metrics.ResultError).Inc()
		internalError(ctx, w, "Registration failed", err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("register", metrics.ResultOK).Inc()
	events.Emit(ctx, h.publisher, events.New(events.TypeUserRegistered, req.Username, ""))
	logRequest(ctx, "info", "User registered successfully", zap.String("username", req.Username), zap.String("user_id", userID))

	writeJSON(w, http.StatusOK, models.AuthResponse{
		Success: true,
		Message: "User registered successfully",
		UserData: &models.UserProfile{
			UserID:   userID,
			Username: req.Username,
			Email:    req.Email,
		},
		SessionToken: token,
	})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid login body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}

	logRequest(ctx, "info", "Login request", zap.String("username", req.Username))

	profile, err := h.store.Authenticate(req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		h.authFailed(ctx, w, "login", msgInvalidCredentials)
		return
	case errors.Is(err, store.ErrAccountDeactivated):
		h.authFailed(ctx, w, "login", msgAccountDeactivated)
		return
	case err != nil:
		metrics.AuthAttempts.WithLabelValues("login", metrics.ResultError).Inc()
		internalError(ctx, w, "Login failed", err)
		return
	}

	token, err := h.store.GrantSession(req.Username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", metrics.ResultError).Inc()
		internalError(ctx, w, "Login failed", err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("login", metrics.ResultOK).Inc()
	events.Emit(ctx, h.publisher, events.New(events.TypeUserLoggedIn, req.Username, ""))
	logRequest(ctx, "info", "Login successful", zap.String("username", req.Username))

	writeJSON(w, http.StatusOK, models.AuthResponse{
		Success:      true,
		Message:      "Login successful",
		UserData:     profile,
		SessionToken: token,
	})
}

// authFailed answers a business failure with success=false and status 200
func (h *Handler) authFailed(ctx context.Context, w http.ResponseWriter, operation, message string) {
	metrics.AuthAttempts.WithLabelValues(operation, "rejected").Inc()
	logRequest(ctx, "info", "Authentication rejected", zap.String("operation", operation), zap.String("reason", message))
	writeJSON(w, http.StatusOK, models.AuthResponse{Success: false, Message: message})
}

// Me handles GET /api/auth/me
func (h *Handler) Me(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	user, found := h.store.GetByUsername(identity.Username)
	if !found {
		logRequest(ctx, "info", "User not found", zap.String("username", identity.Username))
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("User not found"))
		return
	}

	logRequest(ctx, "info", "Me retrieved", zap.String("user_id", user.UserID))

	writeJSON(w, http.StatusOK, models.UserProfile{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
		Chats:    user.Chats,
	})
}

// Logout handles POST /api/auth/logout - clears the session token
func (h *Handler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := currentUser(ctx)
	if !ok {
		unauthorized(ctx, w)
		return
	}

	// a user that vanished has no session left to clear
	if err := h.store.Logout(identity.Username); err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(ctx, w, "Logout failed", err)
		return
	}

	events.Emit(ctx, h.publisher, events.New(events.TypeUserLoggedOut, identity.Username, ""))
	logRequest(ctx, "info", "Logged out", zap.String("username", identity.Username))

	writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Logged out successfully"})
}
