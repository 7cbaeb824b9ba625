package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"docchat-service/models"

	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// Route and auth lookups go through these so tests can call handlers without the server
var (
	routeName   = httpserver.GetRouteName
	routeMethod = httpserver.GetRouteMethod
	routePath   = httpserver.GetRoutePath
	requestAuth = httpserver.GetRequestAuth
)

// logRequest logs with the route, method, path and client of the current request
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	name := routeName(ctx)
	method := routeMethod(ctx)
	path := routePath(ctx)
	auth := requestAuth(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + name + " - " + method + " - " + path
	if auth != nil && auth.Client != "" {
		logMsg += " - client:" + auth.Client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", name),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// currentUser returns the session identity checkAuth attached to the request
func currentUser(ctx context.Context) (models.SessionUser, bool) {
	auth := requestAuth(ctx)
	if auth == nil || auth.Client == "" {
		return models.SessionUser{}, false
	}
	user := models.SessionUser{Username: auth.Client}
	if claims, ok := auth.Claims.(map[string]interface{}); ok {
		if id, ok := claims["user_id"].(string); ok {
			user.UserID = id
		}
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func unauthorized(ctx context.Context, w http.ResponseWriter) {
	logRequest(ctx, "error", "Missing session identity")
	writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Invalid or expired session"))
}

func internalError(ctx context.Context, w http.ResponseWriter, message string, err error) {
	logRequest(ctx, "error", message, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError(message))
}
