// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package extract reads reservation workbooks with excelize and aggregates
// daily counts into per-facility, per-month arrays for the current year.
//
// Each workbook maps to a facility through an ordered substring table. Locked
// and unmapped workbooks are skipped with an explicit Status instead of an
// error, and every open is serialised behind one process-wide mutex.
package extract
