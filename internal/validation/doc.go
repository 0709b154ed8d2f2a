// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package validation provides struct validation using go-playground/validator v10.
//
// It holds a thread-safe singleton validator that reports fields by their
// koanf key (so errors read "store.batch_size must be at least 1") and
// registers the excelcol tag for spreadsheet column letters.
//
//	type WorkbookConfig struct {
//	    DateColumn string `koanf:"date_column" validate:"required,excelcol"`
//	}
package validation
