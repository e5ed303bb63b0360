package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentbridge/agentbridge/internal/api/handlers"
	"github.com/agentbridge/agentbridge/internal/api/middleware"
	"github.com/agentbridge/agentbridge/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Put("/", h.UpdateAgent)
				r.Delete("/", h.DeleteAgent)
				r.Post("/chat", h.Chat)

				r.Route("/knowledge", func(r chi.Router) {
					r.Get("/", h.ListKnowledgeBases)
					r.Post("/", h.UploadKnowledge)
					r.Post("/query", h.QueryKnowledge)
					r.Delete("/{kbID}", h.DeleteKnowledge)
				})
			})
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/", h.ListIntegrations)
			r.Post("/", h.CreateIntegration)
			r.Route("/{integrationID}", func(r chi.Router) {
				r.Get("/", h.GetIntegration)
				r.Put("/", h.UpdateIntegration)
				r.Delete("/", h.DeleteIntegration)
			})
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.ListActions)
			r.Post("/", h.CreateAction)
			r.Route("/{actionID}", func(r chi.Router) {
				r.Get("/", h.GetAction)
				r.Put("/", h.UpdateAction)
				r.Delete("/", h.DeleteAction)
				r.Post("/execute", h.ExecuteAction)
			})
		})

		r.Route("/secrets", func(r chi.Router) {
			r.Get("/", h.ListSecrets)
			r.Post("/", h.CreateSecret)
			r.Route("/{secretName}", func(r chi.Router) {
				r.Put("/", h.UpdateSecret)
				r.Delete("/", h.DeleteSecret)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "agentbridge",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "agentbridge",
		})
	}
}
