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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
)

// PostgresConfig configures a PostgresStore.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
}

// PostgresStore reads and writes monthly rows directly over pgx.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
}

// NewPostgresStore connects a pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.Table == "" {
		cfg.Table = "monthly_reservations"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &PostgresStore{pool: pool, table: pgx.Identifier{cfg.Table}.Sanitize()}, nil
}

// EnsureSchema creates the reservation table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		tenant_id          integer     NOT NULL,
		facility_id        integer     NOT NULL,
		year               integer     NOT NULL,
		month              integer     NOT NULL CHECK (month BETWEEN 1 AND 12),
		reservation_counts text[]      NOT NULL,
		updated_at         timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (tenant_id, facility_id, year, month)
	)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// classify marks constraint and syntax errors as permanent so they are not retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57": // connection, rollback, resources, operator intervention
			return err
		}
		return retry.Permanent(err)
	}
	return err
}

func (s *PostgresStore) observe(operation string, start time.Time, err error) error {
	metrics.RecordStoreOperation(KindPostgres, operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("store %s: %w", operation, classify(err))
	}
	return nil
}

// Fetch looks up the whole batch in one round trip by joining unnested key arrays.
func (s *PostgresStore) Fetch(ctx context.Context, keys []models.RecordKey) (out map[models.RecordKey]Row, err error) {
	start := time.Now()
	defer func() { err = s.observe("fetch", start, err) }()

	out = make(map[models.RecordKey]Row, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	tenants := make([]int32, len(keys))
	facilities := make([]int32, len(keys))
	years := make([]int32, len(keys))
	months := make([]int32, len(keys))
	for i, k := range keys {
		tenants[i], facilities[i], years[i], months[i] = int32(k.TenantID), int32(k.FacilityID), int32(k.Year), int32(k.Month)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT t.tenant_id, t.facility_id, t.year, t.month, t.reservation_counts, t.updated_at
		FROM `+s.table+` t
		JOIN unnest($1::int[], $2::int[], $3::int[], $4::int[]) AS k(tenant_id, facility_id, year, month)
		  ON t.tenant_id = k.tenant_id AND t.facility_id = k.facility_id
		 AND t.year = k.year AND t.month = k.month`,
		tenants, facilities, years, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row                           Row
			tenant, facility, year, month int32
		)
		if err := rows.Scan(&tenant, &facility, &year, &month, &row.ReservationCounts, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.Key = models.RecordKey{TenantID: int(tenant), FacilityID: int(facility), Year: int(year), Month: time.Month(month)}
		out[row.Key] = row
	}
	return out, rows.Err()
}

// Insert upserts so a concurrent writer cannot make the insert fail.
func (s *PostgresStore) Insert(ctx context.Context, rec models.MonthlyReservationRecord) (err error) {
	start := time.Now()
	defer func() { err = s.observe("insert", start, err) }()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO `+s.table+` (tenant_id, facility_id, year, month, reservation_counts, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (tenant_id, facility_id, year, month)
			DO UPDATE SET reservation_counts = EXCLUDED.reservation_counts, updated_at = EXCLUDED.updated_at`,
			rec.Key.TenantID, rec.Key.FacilityID, rec.Key.Year, int(rec.Key.Month), rec.ReservationCounts)
		return err
	})
}

func (s *PostgresStore) Update(ctx context.Context, rec models.MonthlyReservationRecord) (err error) {
	start := time.Now()
	defer func() { err = s.observe("update", start, err) }()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE `+s.table+`
			SET reservation_counts = $5, updated_at = now()
			WHERE tenant_id = $1 AND facility_id = $2 AND year = $3 AND month = $4`,
			rec.Key.TenantID, rec.Key.FacilityID, rec.Key.Year, int(rec.Key.Month), rec.ReservationCounts)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return retry.Permanent(fmt.Errorf("%s: %w", rec.Key, ErrNotFound))
		}
		return nil
	})
}

func (s *PostgresStore) ListFacilityYear(ctx context.Context, tenantID, facilityID, year int) (keys []models.RecordKey, err error) {
	start := time.Now()
	defer func() { err = s.observe("list", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT month FROM `+s.table+`
		WHERE tenant_id = $1 AND facility_id = $2 AND year = $3
		ORDER BY month`, tenantID, facilityID, year)
	if err != nil {
		return nil, err
	}
	months, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, err
	}
	for _, m := range months {
		keys = append(keys, models.RecordKey{TenantID: tenantID, FacilityID: facilityID, Year: year, Month: time.Month(m)})
	}
	return keys, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
