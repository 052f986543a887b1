package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

// NewRouter serves the dashboard. The administrative routes are mounted only
// when dir is non-nil.
func NewRouter(s *dashboard.Session, dir store.Directory, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute))

	dash := NewDashboardHandler(s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", dash.Get)
		r.Post("/dashboard/refresh", dash.Refresh)
		r.Post("/dashboard/sort", dash.Sort)
		r.Post("/dashboard/sync", dash.Sync)

		r.Get("/dimensions", dash.Dimensions)
		r.Put("/weights/{dimension}", dash.SetWeight)
		r.Post("/weights/{dimension}/lock", dash.ToggleLock)
		r.Post("/weights/save", dash.SaveWeights)

		r.Get("/strategies", dash.ListStrategies)
		r.Post("/strategies/{key}/apply", dash.ApplyStrategy)

		r.Put("/statistics/{id}/scores/{dimension}", dash.UpdateScore)
		r.Get("/statistics/{id}/explain", dash.Explain)

		if dir == nil {
			return
		}
		admin := NewDirectoryHandler(dir, s, logger)
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))

			r.Get("/organizations", admin.ListOrganizations)
			r.Post("/organizations", admin.CreateOrganization)
			r.Get("/organizations/{id}", admin.GetOrganization)
			r.Put("/organizations/{id}", admin.UpdateOrganization)
			r.Delete("/organizations/{id}", admin.DeleteOrganization)

			r.Get("/metrics", admin.ListMetrics)
			r.Post("/metrics", admin.CreateMetric)
			r.Get("/metrics/{id}", admin.GetMetric)
			r.Put("/metrics/{id}", admin.UpdateMetric)
			r.Delete("/metrics/{id}", admin.DeleteMetric)

			r.Post("/strategies", admin.UpsertStrategy)
			r.Delete("/strategies/{name}", admin.DeleteStrategy)

			r.Get("/summary", admin.Summary)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
