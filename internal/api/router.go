package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/Prioritizer/internal/broker"
	"github.com/MikeSquared-Agency/Prioritizer/internal/config"
	"github.com/MikeSquared-Agency/Prioritizer/internal/metrics"
	"github.com/MikeSquared-Agency/Prioritizer/internal/store"
)

// NewRouter serves the run API. s may be nil, in which case runs are still
// executed but cannot be listed or fetched afterwards.
func NewRouter(b *broker.Broker, s store.Store, run config.RunConfig, server config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))

	runs := NewRunsHandler(b, s, run, logger)
	admin := NewAdminHandler(b, s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ClientIDMiddleware)
		if server.RateLimit > 0 {
			r.Use(RateLimitMiddleware(server.RateLimit))
		}

		r.Post("/runs", runs.Create)
		r.Post("/runs/workbook", runs.Upload)
		r.Get("/runs", runs.List)
		r.Get("/runs/{id}", runs.Get)
		r.Get("/runs/{id}/views/{view}", runs.View)
		r.Get("/runs/{id}/workbook", runs.Workbook)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(server.AdminToken))
			r.Get("/admin/params", admin.Params)
			r.Get("/admin/stats", admin.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}
