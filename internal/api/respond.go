// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/models"
)

func respondJSON(w http.ResponseWriter, r *http.Request, code int, status string, data any) {
	writeResponse(w, r, code, &models.APIResponse{
		Status:   status,
		Data:     data,
		Metadata: metadata(r),
	})
}

func respondError(w http.ResponseWriter, r *http.Request, code int, errCode, message string) {
	writeResponse(w, r, code, &models.APIResponse{
		Status:   "error",
		Metadata: metadata(r),
		Error:    &models.APIError{Code: errCode, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, r *http.Request, code int, resp *models.APIResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func metadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}
