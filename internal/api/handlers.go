// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/pipeline"
)

// ReadyStatus is the /readyz payload.
type ReadyStatus struct {
	State        string                 `json:"state"`
	Ready        bool                   `json:"ready"`
	Pipeline     models.PipelineHealth  `json:"pipeline"`
	HealthReport *pipeline.HealthReport `json:"health_report,omitempty"`
	Uptime       float64                `json:"uptime_seconds"`
}

// HealthLive answers liveness probes. It reports 200 while the process runs,
// regardless of dependencies.
func (rt *Router) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, "alive", map[string]any{
		"alive":          true,
		"uptime_seconds": time.Since(rt.startTime).Seconds(),
	})
}

// HealthReady answers readiness probes with the pipeline state and the last
// health report. It returns 503 when the pipeline is not running or the last
// health check failed.
func (rt *Router) HealthReady(w http.ResponseWriter, r *http.Request) {
	body := rt.readyStatus()

	code, status := http.StatusOK, "ready"
	if !body.Ready {
		code, status = http.StatusServiceUnavailable, "not_ready"
	}
	respondJSON(w, r, code, status, body)
}

// Status returns the same payload as /readyz but always with 200.
func (rt *Router) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, "success", rt.readyStatus())
}

// TriggerSync requests an immediate cycle. Requests made while one is
// pending coalesce, so 202 does not promise a dedicated cycle.
func (rt *Router) TriggerSync(w http.ResponseWriter, r *http.Request) {
	state := rt.status.State()
	if !state.Ready() {
		respondError(w, r, http.StatusConflict, "PIPELINE_NOT_RUNNING", "Pipeline is "+state.String())
		return
	}
	rt.status.Trigger()
	logging.Ctx(r.Context()).Info().Msg("Manual sync requested")
	respondJSON(w, r, http.StatusAccepted, "accepted", map[string]any{"triggered": true})
}

func (rt *Router) readyStatus() ReadyStatus {
	state := rt.status.State()
	body := ReadyStatus{
		State:    state.String(),
		Ready:    state.Ready(),
		Pipeline: rt.status.Health(),
		Uptime:   time.Since(rt.startTime).Seconds(),
	}
	if report := rt.status.LastHealthReport(); !report.Timestamp.IsZero() {
		body.HealthReport = &report
		body.Ready = body.Ready && report.Healthy
	}
	return body
}
