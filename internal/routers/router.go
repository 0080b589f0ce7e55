package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"scriptcollab/internal/api"
	"scriptcollab/internal/config"
	"scriptcollab/internal/metrics"
	authmw "scriptcollab/internal/middleware"
	"scriptcollab/internal/session"
)

func New(log *zap.Logger, cfg *config.Config, hub *session.Hub) http.Handler {
	h := api.NewHandlers(log, cfg, hub)
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Internal-Key"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(metrics.Middleware("scriptcollab"))

	r.Get("/api/v1/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// The WebSocket authenticates itself before upgrading; no timeout applies.
	r.Get("/ws", h.CollabWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.With(authmw.RequireAuth(cfg.JWTSecret, log)).Get("/api/v1/scripts/{scriptId}/collaborators", h.Collaborators)
		r.Get("/api/v1/stats", h.Stats)

		r.With(authmw.RequireInternalKey(cfg.InternalAPIKey)).Post("/api/v1/internal/scripts/{scriptId}/broadcast", h.Broadcast)
	})

	return r
}
