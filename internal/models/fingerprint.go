// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package models

import "time"

// FileFingerprint is the (modification time, content hash) pair cached per
// workbook between cycles. The hash is authoritative; the modification time is
// only a fast-path short circuit because network shares report it unreliably.
type FileFingerprint struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
	Hash    string    `json:"hash"`
}

// SameModTime reports whether the fingerprint was taken at the given mod time.
func (f FileFingerprint) SameModTime(modTime time.Time) bool {
	return f.ModTime.Equal(modTime)
}

// PipelineHealth is the orchestrator's transient, in-memory health state.
// It is never persisted.
type PipelineHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
	LastHealthCheck     time.Time `json:"last_health_check"`
	LastFailure         time.Time `json:"last_failure"`
	LastError           string    `json:"last_error,omitempty"`
	CyclesRun           int64     `json:"cycles_run"`
}
