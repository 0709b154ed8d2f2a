// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package detect

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reservesync/internal/models"
)

// fingerprintKeyPrefix namespaces fingerprint entries in BadgerDB.
const fingerprintKeyPrefix = "fingerprint:"

// FingerprintStore persists fingerprints between process runs.
type FingerprintStore interface {
	Load(ctx context.Context) ([]models.FileFingerprint, error)
	// Save replaces the stored set with fps.
	Save(ctx context.Context, fps []models.FileFingerprint) error
	Close() error
}

// BadgerStore implements FingerprintStore using BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerStore opens (or creates) a BadgerDB at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for fingerprints: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStore wraps an existing database. Close leaves db open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load returns every stored fingerprint.
func (s *BadgerStore) Load(ctx context.Context) ([]models.FileFingerprint, error) {
	var out []models.FileFingerprint

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fingerprintKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var fp models.FileFingerprint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fp)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, fp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	return out, nil
}

// Save replaces all stored fingerprints.
func (s *BadgerStore) Save(ctx context.Context, fps []models.FileFingerprint) error {
	if err := s.db.DropPrefix([]byte(fingerprintKeyPrefix)); err != nil {
		return fmt.Errorf("drop fingerprints: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, fp := range fps {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(fp)
		if err != nil {
			return fmt.Errorf("marshal fingerprint: %w", err)
		}
		if err := wb.Set([]byte(fingerprintKeyPrefix+fp.Path), data); err != nil {
			return fmt.Errorf("write fingerprint %s: %w", fp.Path, err)
		}
	}
	return wb.Flush()
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// MemoryStore implements FingerprintStore in memory for tests.
type MemoryStore struct {
	mu  sync.Mutex
	fps []models.FileFingerprint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored fingerprints.
func (s *MemoryStore) Load(_ context.Context) ([]models.FileFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FileFingerprint(nil), s.fps...), nil
}

// Save replaces the stored fingerprints.
func (s *MemoryStore) Save(_ context.Context, fps []models.FileFingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = append([]models.FileFingerprint(nil), fps...)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
