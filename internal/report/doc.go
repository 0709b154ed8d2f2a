// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package report writes per-cycle audit CSV files, renders the notification
// summary for a change set and expires old audit files.
//
// Audit files are named {YYYYMMDD_HHMMSS}_proof.csv, start with a UTF-8 byte
// order mark and carry the columns listed in Header. A cycle without changes
// writes no file.
package report
