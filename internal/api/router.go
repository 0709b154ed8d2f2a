// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/reservesync/internal/middleware"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/pipeline"
)

// PipelineStatus is the view of the orchestrator the API needs.
// *pipeline.Orchestrator satisfies it.
type PipelineStatus interface {
	State() pipeline.State
	Health() models.PipelineHealth
	LastHealthReport() pipeline.HealthReport
	Trigger()
}

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// TriggerLimit caps manual sync requests per client IP per TriggerWindow.
	// Default: 6 per minute
	TriggerLimit  int
	TriggerWindow time.Duration
}

// Router serves health, readiness, metrics and the manual trigger.
type Router struct {
	status    PipelineStatus
	cfg       RouterConfig
	startTime time.Time
}

// NewRouter creates a Router over status.
func NewRouter(status PipelineStatus, cfg RouterConfig) *Router {
	if cfg.TriggerLimit <= 0 {
		cfg.TriggerLimit = 6
	}
	if cfg.TriggerWindow <= 0 {
		cfg.TriggerWindow = time.Minute
	}
	return &Router{status: status, cfg: cfg, startTime: time.Now()}
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", rt.HealthLive)
	r.Get("/readyz", rt.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", rt.Status)
		r.With(httprate.LimitByIP(rt.cfg.TriggerLimit, rt.cfg.TriggerWindow)).Post("/sync", rt.TriggerSync)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
	return r
}
