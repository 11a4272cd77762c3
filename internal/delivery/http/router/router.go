package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/user/court-watch/internal/delivery/http/handler"
	"github.com/user/court-watch/internal/delivery/http/middleware"
	"github.com/user/court-watch/pkg/metrics"
)

func New(h *handler.Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))

	r.Get("/api/health", h.HandleHealthCheck)
	r.Get("/api/runs/latest", h.HandleLatestRun)
	r.Post("/api/scan", h.HandleStartScan)

	// Prometheus metrics endpoint
	r.Get("/metrics", m.Handler().ServeHTTP)

	return r
}
