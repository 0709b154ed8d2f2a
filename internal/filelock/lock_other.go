// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

//go:build !unix

package filelock

// tryShared is a no-op where the open itself reports sharing violations.
func tryShared(File) error {
	return nil
}
