// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/reservesync/internal/models"
)

// MemoryStore is a map-backed Store for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[models.RecordKey]Row
	now  func() time.Time

	inserts int
	updates int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[models.RecordKey]Row),
		now:  time.Now,
	}
}

// Seed stores rows directly, bypassing the operation counters.
func (s *MemoryStore) Seed(rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r.ReservationCounts = copyCounts(r.ReservationCounts)
		s.rows[r.Key] = r
	}
}

// Get returns a stored row.
func (s *MemoryStore) Get(key models.RecordKey) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[key]
	if ok {
		r.ReservationCounts = copyCounts(r.ReservationCounts)
	}
	return r, ok
}

// Counts returns how many inserts and updates were applied.
func (s *MemoryStore) Counts() (inserts, updates int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts, s.updates
}

func (s *MemoryStore) Fetch(ctx context.Context, keys []models.RecordKey) (map[models.RecordKey]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.RecordKey]Row, len(keys))
	for _, k := range keys {
		if r, ok := s.rows[k]; ok {
			r.ReservationCounts = copyCounts(r.ReservationCounts)
			out[k] = r
		}
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec models.MonthlyReservationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[rec.Key]; exists {
		return fmt.Errorf("insert %s: duplicate key", rec.Key)
	}
	s.rows[rec.Key] = Row{Key: rec.Key, ReservationCounts: copyCounts(rec.ReservationCounts), UpdatedAt: s.now()}
	s.inserts++
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, rec models.MonthlyReservationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[rec.Key]; !exists {
		return fmt.Errorf("update %s: %w", rec.Key, ErrNotFound)
	}
	s.rows[rec.Key] = Row{Key: rec.Key, ReservationCounts: copyCounts(rec.ReservationCounts), UpdatedAt: s.now()}
	s.updates++
	return nil
}

func (s *MemoryStore) ListFacilityYear(ctx context.Context, tenantID, facilityID, year int) ([]models.RecordKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []models.RecordKey
	for k := range s.rows {
		if k.TenantID == tenantID && k.FacilityID == facilityID && k.Year == year {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b models.RecordKey) int { return int(a.Month) - int(b.Month) })
	return keys, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }
