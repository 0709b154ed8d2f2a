// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

//go:build unix

package filelock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// tryShared takes a non-blocking shared advisory lock and releases it.
// Failure means another process holds an exclusive lock.
func tryShared(f File) error {
	fd := int(f.Fd()) // #nosec G115 -- file descriptors fit in int
	if err := unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return fmt.Errorf("shared lock: %w", err)
	}
	return unix.Flock(fd, unix.LOCK_UN)
}
