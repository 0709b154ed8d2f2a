// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package models

import (
	"fmt"
	"time"
)

// DefaultDailyCount is the value stored for days with no observed reservations.
const DefaultDailyCount = "0"

// RecordKey is the composite identity of a monthly reservation row.
//
// It is the sole idempotency key against the remote store: two records with the
// same key always refer to the same remote row.
type RecordKey struct {
	TenantID   int        `json:"tenant_id"`
	FacilityID int        `json:"facility_id"`
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
}

// Period returns the year-month label used in reports, e.g. "2024-01".
func (k RecordKey) Period() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// String implements fmt.Stringer for log fields.
func (k RecordKey) String() string {
	return fmt.Sprintf("tenant=%d facility=%d period=%s", k.TenantID, k.FacilityID, k.Period())
}

// DaysIn returns the number of calendar days in the given month,
// accounting for leap years.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthlyReservationRecord holds the daily reservation counts of one facility
// for one calendar month.
//
// ReservationCounts has exactly DaysIn(Year, Month) slots; index 0 is day 1.
// Records are created by the extractor and only read by the sync engine.
type MonthlyReservationRecord struct {
	Key               RecordKey `json:"key"`
	ReservationCounts []string  `json:"reservation_counts"`

	// SourceFile is the workbook the record was extracted from (diagnostics only).
	SourceFile string `json:"source_file,omitempty"`
}

// NewMonthlyRecord returns a record for key with every day set to DefaultDailyCount.
func NewMonthlyRecord(key RecordKey) MonthlyReservationRecord {
	counts := make([]string, DaysIn(key.Year, key.Month))
	for i := range counts {
		counts[i] = DefaultDailyCount
	}
	return MonthlyReservationRecord{Key: key, ReservationCounts: counts}
}

// SetDay stores value for the given day of month (1-based).
// Out-of-range days are ignored and reported as false.
func (r *MonthlyReservationRecord) SetDay(day int, value string) bool {
	if day < 1 || day > len(r.ReservationCounts) {
		return false
	}
	r.ReservationCounts[day-1] = value
	return true
}

// Valid reports whether the counts array length matches the month length.
func (r *MonthlyReservationRecord) Valid() bool {
	return len(r.ReservationCounts) == DaysIn(r.Key.Year, r.Key.Month)
}

// CountsEqual reports whether two daily count arrays are element-wise identical.
func CountsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both records share a key and identical daily counts.
func (r MonthlyReservationRecord) Equal(other MonthlyReservationRecord) bool {
	return r.Key == other.Key && CountsEqual(r.ReservationCounts, other.ReservationCounts)
}
