package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"docchat-service/assistant"
	"docchat-service/auth"
	cachepackage "docchat-service/cache"
	"docchat-service/config"
	"docchat-service/database"
	"docchat-service/events"
	"docchat-service/handlers"
	"docchat-service/metrics"
	"docchat-service/ratelimit"
	"docchat-service/store"

	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitLogger sets up the shared zap logger
func InitLogger() {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
}

// newCheckAuth resolves "Authorization: Bearer <session token>" through the user store.
// It never rejects: a missing, malformed, unknown or expired token yields an
// anonymous RequestAuth and the handler answers 401 inside the CORS wrapper,
// so the rejection carries the Access-Control headers and a JSON body.
func newCheckAuth(users *store.UserStore) httpserver.AuthCallback {
	return func(r *http.Request) (bool, httpserver.RequestAuth) {
		anonymous := httpserver.RequestAuth{Type: "bearer"}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return true, anonymous
		}

		identity, err := users.ValidateSession(strings.TrimSpace(token))
		if err != nil {
			logger.Debug("Session rejected", zap.String("path", r.URL.Path), zap.Error(err))
			return true, anonymous
		}

		return true, httpserver.RequestAuth{
			Type:   "bearer",
			Client: identity.Username,
			Claims: map[string]interface{}{
				"user_id":  identity.UserID,
				"username": identity.Username,
			},
		}
	}
}

// OpenStore builds the configured backend and loads the user store.
// The returned func releases the backend's resources.
func OpenStore(cfg *config.Config) (*store.UserStore, func(), error) {
	hasher, err := auth.NewHasher(cfg.PasswordScheme, cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	var backend store.Backend
	switch cfg.StoreBackend {
	case config.BackendMemory:
		backend = store.NewMemoryBackend(nil)
	case config.BackendSQLite:
		dbConn := database.InitializeDatabase(cfg)
		closer = func() { dbConn.Close() }
		sqlBackend, err := store.NewSQLiteBackend(dbConn)
		if err != nil {
			closer()
			return nil, nil, err
		}
		backend = sqlBackend
	default:
		backend = store.NewFileBackend(cfg.UsersFile)
	}

	users, err := store.New(backend, hasher, store.WithSessionTTL(cfg.SessionTTL))
	if err != nil {
		closer()
		return nil, nil, err
	}

	logger.Info("User store loaded", zap.String("backend", cfg.StoreBackend), zap.String("password_scheme", hasher.Scheme()))
	return users, closer, nil
}

func newAssistant(cfg *config.Config) assistant.Service {
	if cfg.AssistantMode == config.AssistantEcho {
		logger.Info("Using echo assistant")
		return assistant.NewEchoService()
	}
	return assistant.NewClient(assistant.Options{
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		AssistantID:  cfg.AssistantID,
		PollInterval: cfg.AssistantPollInterval,
		RunTimeout:   cfg.AssistantTimeout,
	})
}

func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue)
	if err != nil {
		logger.Error("Message broker unavailable, events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return p
}

type route struct {
	name     string
	method   string
	path     string
	authType string
	handler  func(context.Context, http.ResponseWriter, *http.Request)
}

func apiRoutes(h *handlers.Handler, limiter *ratelimit.Limiter) []route {
	return []route{
		{"Root", "GET", "/", "none", h.Root},
		{"HealthCheck", "GET", "/health", "none", h.Health},
		{"Metrics", "GET", "/metrics", "none", func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		}},
		{"Register", "POST", "/api/auth/register", "none", limiter.Wrap("register", h.Register)},
		{"Login", "POST", "/api/auth/login", "none", limiter.Wrap("login", h.Login)},
		{"Me", "GET", "/api/auth/me", "bearer", h.Me},
		{"Logout", "POST", "/api/auth/logout", "bearer", h.Logout},
		{"CreateChat", "POST", "/api/chats", "bearer", h.CreateChat},
		{"ListChats", "GET", "/api/chats", "bearer", h.ListChats},
		{"DeleteChat", "DELETE", "/api/chats/{chat_id}", "bearer", h.DeleteChat},
		{"RenameChat", "PUT", "/api/chats/{chat_id}/title", "bearer", h.RenameChat},
		{"CreateThread", "POST", "/api/thread", "bearer", h.CreateThread},
		{"SendMessage", "POST", "/api/chat", "bearer", limiter.Wrap("chat", h.SendMessage)},
	}
}

// preflightRoutes adds one OPTIONS route per distinct API path
func preflightRoutes(h *handlers.Handler, routes []route) []route {
	seen := make(map[string]bool)
	var out []route
	for _, rt := range routes {
		if !strings.HasPrefix(rt.path, "/api/") || seen[rt.path] {
			continue
		}
		seen[rt.path] = true
		out = append(out, route{
			name:     fmt.Sprintf("Preflight%d", len(out)+1),
			method:   "OPTIONS",
			path:     rt.path,
			authType: "none",
			handler:  h.Preflight,
		})
	}
	return out
}

// routeHandler applies CORS to every route, including its 401 answers
func routeHandler(h *handlers.Handler, rt route) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(h.CORS(rt.handler))
}

func StartServer() {
	InitLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Starting DocChat Service...", zap.String("env", cfg.Env))

	users, closeStore, err := OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to open user store", zap.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	cache := cachepackage.InitializeCache(cfg)
	if cache != nil {
		defer cache.Close()
	}

	rdb := cachepackage.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := ratelimit.New(ratelimit.Config{
		Enabled:        cfg.RateLimitEnabled,
		Capacity:       cfg.RateLimitCapacity,
		RefillInterval: cfg.RateLimitRefillInterval,
		TrustedProxies: cfg.TrustedProxyList(),
	}, rdb)

	publisher := newPublisher(cfg)
	defer publisher.Close()

	h := handlers.NewHandler(cfg, users, newAssistant(cfg), cache, publisher)

	server := httpserver.New(cfg.Port, newCheckAuth(users))

	routes := apiRoutes(h, limiter)
	routes = append(routes, preflightRoutes(h, routes)...)
	for _, rt := range routes {
		server.Register(httpserver.Route{
			Name:     rt.name,
			Method:   rt.method,
			Path:     rt.path,
			AuthType: rt.authType,
		}, routeHandler(h, rt))
	}

	logger.Info("DocChat Service started",
		zap.String("port", cfg.Port),
		zap.Bool("rate_limit", limiter.Active()),
		zap.Duration("session_ttl", cfg.SessionTTL))
	logger.Info("Health check: GET /health")
	logger.Info("API endpoints: /api/auth, /api/chats, /api/thread, /api/chat")

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		os.Exit(1)
	}
}
