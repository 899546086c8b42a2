// Package http wires the chi router exposing the ingestion pipeline to
// the UI and export collaborators.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wardpulse/internal/config"
	apierrors "wardpulse/internal/errors"
	"wardpulse/internal/middleware"
	"wardpulse/internal/services"
	"wardpulse/pkg/contracts"
)

// NewRouter builds the full route tree.
func NewRouter(cfg *config.Config, logger *slog.Logger, service *services.DatasetService) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := NewMetrics(registry)

	errorHandler := apierrors.NewErrorHandler(logger)
	handler := NewDatasetHandler(service, logger, errorHandler, metrics, cfg.Server.MaxUploadBytes)
	uploadLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.With(uploadLimiter.Handler).Post("/workbooks", handler.Upload)

		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Use(handler.DatasetCtx)
			r.Get("/", handler.GetMerged)
			r.Get("/summary", handler.GetSummary)
			r.Get("/reports", handler.GetReports)
			r.Get("/export/{table}", handler.Export)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status":  "ok",
			"version": contracts.Version,
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
