// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

//go:build unix

package filelock

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestIsUnlocked_ExclusiveHolder(t *testing.T) {
	path := writeFile(t, "Aoba.xlsx")

	holder, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Close()

	if err := unix.Flock(int(holder.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Skipf("flock unsupported on this filesystem: %v", err)
	}

	p := NewProbe(WithStep(time.Millisecond))
	if p.IsUnlocked(context.Background(), path, time.Second) {
		t.Error("file held with an exclusive lock should be reported locked")
	}

	if err := unix.Flock(int(holder.Fd()), unix.LOCK_UN); err != nil {
		t.Fatal(err)
	}
	if !p.IsUnlocked(context.Background(), path, time.Second) {
		t.Error("file should be unlocked after the holder releases")
	}
}
