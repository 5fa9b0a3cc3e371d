package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/tamerwork/llm-gateway/internal/handler/chat"
	statshandler "github.com/tamerwork/llm-gateway/internal/handler/stats"
	middlewarePkg "github.com/tamerwork/llm-gateway/internal/middleware"
	"github.com/tamerwork/llm-gateway/internal/observer"
	"github.com/tamerwork/llm-gateway/internal/policy"
	chatservice "github.com/tamerwork/llm-gateway/internal/service/chat"
	"github.com/tamerwork/llm-gateway/internal/service/llm"
	"github.com/tamerwork/llm-gateway/internal/stats"
	"github.com/tamerwork/llm-gateway/pkg/utils"
	"github.com/tamerwork/llm-gateway/web"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(engine *policy.Engine, store *stats.Store, registry *observer.Registry, sessions *chatservice.Service, backend llm.Backend) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(engine, store, registry, sessions, backend)
	statsHandler := statshandler.New(registry)

	// Dashboard page plus its live data stream.
	r.Handle("/", web.DashboardHandler())
	r.Get("/stats", statsHandler.HandleWebSocket)

	// Chat proxy channel.
	r.Get("/chat", chatHandler.HandleWebSocket)

	r.Route("/api", func(api chi.Router) {
		api.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, store.Snapshot())
		})
		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":    "ok",
				"sessions":  sessions.ActiveCount(),
				"observers": registry.Count(),
			})
		})
	})

	return r
}
