// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/reservesync/internal/models"
)

func key(facility int, month time.Month) models.RecordKey {
	return models.RecordKey{TenantID: 1, FacilityID: facility, Year: 2024, Month: month}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	jan := models.MonthlyReservationRecord{Key: key(7, time.January), ReservationCounts: []string{"5", "3"}}

	got, err := s.Fetch(ctx, []models.RecordKey{jan.Key})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("Fetch on empty store returned %d rows", len(got))
	}

	if err := s.Insert(ctx, jan); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.Insert(ctx, jan); err == nil {
		t.Error("duplicate Insert should fail")
	}

	jan.ReservationCounts[1] = "4"
	if err := s.Update(ctx, jan); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	row, ok := s.Get(jan.Key)
	if !ok || !models.CountsEqual(row.ReservationCounts, []string{"5", "4"}) {
		t.Errorf("stored row = %+v", row)
	}

	missing := models.MonthlyReservationRecord{Key: key(8, time.January)}
	if err := s.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if ins, upd := s.Counts(); ins != 1 || upd != 1 {
		t.Errorf("Counts() = %d, %d; want 1, 1", ins, upd)
	}
}

func TestMemoryStore_IsolatesCallerSlices(t *testing.T) {
	s := NewMemoryStore()
	counts := []string{"1", "2"}
	s.Seed(Row{Key: key(7, time.March), ReservationCounts: counts})

	counts[0] = "9"
	row, _ := s.Get(key(7, time.March))
	if row.ReservationCounts[0] != "1" {
		t.Error("Seed must copy the counts slice")
	}
}

func TestMemoryStore_ListFacilityYear(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(
		Row{Key: key(7, time.March)},
		Row{Key: key(7, time.January)},
		Row{Key: key(8, time.January)},
		Row{Key: models.RecordKey{TenantID: 1, FacilityID: 7, Year: 2023, Month: time.December}},
	)

	keys, err := s.ListFacilityYear(context.Background(), 1, 7, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].Month != time.January || keys[1].Month != time.March {
		t.Errorf("ListFacilityYear() = %v, want Jan and Mar 2024 for facility 7", keys)
	}
}
