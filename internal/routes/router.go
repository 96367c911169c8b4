package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"okasion-watch/collector/internal/api"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/middleware"
)

// RegisterRoutes assembles the Chi router over an initialized dependency
// container. The /metrics endpoint is mounted outside this router (see
// cmd/server) so Prometheus scrapes skip the middleware chain.
func RegisterRoutes(deps *api.Dependencies, upSince time.Time) http.Handler {
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(middleware.RateLimitMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	handlers := api.NewHandlers(deps)

	r.Get("/healthCheck", api.HealthCheckHandler(deps.SQLX, upSince))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/vehicles", handlers.ListVehiclesHandler)
		r.Get("/vehicles/{id}", handlers.GetVehicleHandler)
		r.Get("/stats", handlers.StatsHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.IngestAuthMiddleware(deps.Cfg.IngestJWTSecret))
			r.Post("/ingest", handlers.IngestHandler)
		})
	})

	logging.Info("Router initialized",
		"adapter", deps.Services.Adapter.Name(),
		"ingest_auth", deps.Cfg.IngestJWTSecret != "",
	)
	return r
}
