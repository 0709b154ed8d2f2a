// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package models

import "time"

// ChangeKind classifies a detected delta against the remote store.
type ChangeKind string

const (
	// ChangeNew marks a row that did not exist remotely and was inserted.
	ChangeNew ChangeKind = "New"
	// ChangeChanged marks an existing row whose daily counts differed and was updated.
	ChangeChanged ChangeKind = "Changed"
	// ChangeDeleted marks a remote row with no counterpart in the latest extraction.
	ChangeDeleted ChangeKind = "Deleted"
)

// ChangeRecord is one delta produced by the sync engine for a single cycle.
// It is read-only once created and feeds the audit CSV and the notification summary.
type ChangeRecord struct {
	Kind       ChangeKind `json:"kind"`
	TenantID   int        `json:"tenant_id"`
	FacilityID int        `json:"facility_id"`

	// Period is the year-month label ("2024-01").
	Period string `json:"period"`

	// TimeSlot is reserved for slot-level deltas; monthly records leave it empty.
	TimeSlot string `json:"time_slot,omitempty"`

	// OldValue and NewValue carry the array lengths as a coarse size signal.
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CountByKind tallies changes per kind.
func CountByKind(changes []ChangeRecord) map[ChangeKind]int {
	out := make(map[ChangeKind]int, 3)
	for _, c := range changes {
		out[c.Kind]++
	}
	return out
}
