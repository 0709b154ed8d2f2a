// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/reservesync/internal/config"
	"github.com/tomtom215/reservesync/internal/models"
)

// Backend names used in metrics and configuration.
const (
	KindREST     = "rest"
	KindPostgres = "postgres"
	KindMemory   = "memory"
)

// ErrNotFound is returned by Update when the row does not exist.
var ErrNotFound = errors.New("record not found")

// Row is the remote representation of a monthly reservation record.
type Row struct {
	Key               models.RecordKey
	ReservationCounts []string
	UpdatedAt         time.Time
}

// Store is the remote relational store holding monthly reservation rows,
// keyed by (tenant, facility, year, month).
type Store interface {
	// Fetch returns the rows that exist for keys. Missing keys are absent from the map.
	Fetch(ctx context.Context, keys []models.RecordKey) (map[models.RecordKey]Row, error)
	Insert(ctx context.Context, rec models.MonthlyReservationRecord) error
	Update(ctx context.Context, rec models.MonthlyReservationRecord) error
	// ListFacilityYear returns the keys stored for one facility and year.
	ListFacilityYear(ctx context.Context, tenantID, facilityID, year int) ([]models.RecordKey, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the Store selected by cfg.Kind.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Kind {
	case KindREST, "":
		return NewRESTStore(RESTConfig{
			BaseURL:         cfg.URL,
			APIKey:          cfg.APIKey,
			Table:           cfg.Table,
			Timeout:         cfg.Timeout,
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
		}), nil
	case KindPostgres:
		return NewPostgresStore(ctx, PostgresConfig{
			DSN:      cfg.DSN,
			Table:    cfg.Table,
			MaxConns: cfg.MaxConns,
		})
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

func copyCounts(in []string) []string {
	return append([]string(nil), in...)
}
