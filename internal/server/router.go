package server

import (
	"net/http"

	"github.com/cloo-solutions/deskpilot/internal/api"
	"github.com/cloo-solutions/deskpilot/internal/api/handlers"
	"github.com/cloo-solutions/deskpilot/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AuthValidator       middleware.AuthValidator
	PipelineHandler     *handlers.PipelineHandler
	ConversationHandler *handlers.ConversationHandler
	AuthHandler         *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// consumed directly by the help-center widget, no API key
	r.Post("/search-similar", cfg.PipelineHandler.SearchSimilar)
	r.Post("/generate-response", cfg.PipelineHandler.GenerateResponse)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/generate-enhanced-article", cfg.PipelineHandler.GenerateEnhancedArticle)
		r.Post("/store-embeddings", cfg.PipelineHandler.StoreEmbeddings)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", cfg.ConversationHandler.Create)
			r.Get("/{id}", cfg.ConversationHandler.Get)
			r.Post("/{id}/messages", cfg.ConversationHandler.PostMessage)
			r.Post("/{id}/transition", cfg.ConversationHandler.Transition)
		})
	})

	r.Post("/orgs", cfg.AuthHandler.CreateOrg)
	r.Post("/apikeys", cfg.AuthHandler.CreateAPIKey)

	return r
}
