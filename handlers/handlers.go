package handlers

import (
	"context"
	"net/http"
	"strings"

	"docchat-service/assistant"
	"docchat-service/config"
	"docchat-service/events"
	"docchat-service/models"
	"docchat-service/store"

	"github.com/umakantv/go-utils/cache"
)

const serviceName = "docchat-service"

// Handler serves the auth, chat and assistant endpoints
type Handler struct {
	store     *store.UserStore
	assistant assistant.Service
	cache     cache.Cache
	publisher events.Publisher
	cfg       *config.Config
	origins   map[string]bool
}

// NewHandler creates the API handler. cache and publisher may be nil.
func NewHandler(cfg *config.Config, users *store.UserStore, svc assistant.Service, c cache.Cache, publisher events.Publisher) *Handler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	origins := make(map[string]bool)
	for _, o := range cfg.AllowedOrigins() {
		origins[o] = true
	}
	return &Handler{
		store:     users,
		assistant: svc,
		cache:     c,
		publisher: publisher,
		cfg:       cfg,
		origins:   origins,
	}
}

// Root handles GET /
func (h *Handler) Root(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document-Grounded Chatbot API is running"})
}

// Health handles GET /health
func (h *Handler) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:                "healthy",
		Service:               serviceName,
		AssistantConfigured:   h.cfg.AssistantConfigured(),
		VectorStoreConfigured: h.cfg.VectorStoreConfigured(),
	}
	resp.SetupRequired = !(resp.AssistantConfigured && resp.VectorStoreConfigured)
	if resp.SetupRequired {
		cmd := setupCommand(resp.AssistantConfigured, resp.VectorStoreConfigured)
		resp.SetupCommand = &cmd
	}
	writeJSON(w, http.StatusOK, resp)
}

// setupCommand names the environment the service is still missing.
// Creating the assistant and vector store happens outside this service.
func setupCommand(assistantConfigured, vectorStoreConfigured bool) string {
	var missing []string
	if !assistantConfigured {
		missing = append(missing, "ASSISTANT_ID=<assistant id>")
	}
	if !vectorStoreConfigured {
		missing = append(missing, "VECTOR_STORE_ID=<vector store id>")
	}
	return "export " + strings.Join(missing, " ")
}

// CORS sets the Access-Control headers for allowed origins
func (h *Handler) CORS(next func(context.Context, http.ResponseWriter, *http.Request)) func(context.Context, http.ResponseWriter, *http.Request) {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && h.origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		next(ctx, w, r)
	}
}

// Preflight answers OPTIONS requests; wrap it with CORS for the origin headers
func (h *Handler) Preflight(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && h.origins[origin] {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		headers := r.Header.Get("Access-Control-Request-Headers")
		if headers == "" {
			headers = "Authorization, Content-Type"
		}
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Access-Control-Max-Age", "600")
	}
	w.WriteHeader(http.StatusNoContent)
}
