// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
	"github.com/tomtom215/reservesync/internal/store"
)

// DefaultBatchSize bounds the records looked up per store round trip.
const DefaultBatchSize = 50

// Config tunes the engine.
type Config struct {
	BatchSize       int
	DetectDeletions bool
	Retry           retry.Policy
}

// RecordError is a failure for one record.
type RecordError struct {
	Key        models.RecordKey
	SourceFile string
	Op         string
	Err        error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// SyncError aggregates per-record failures from one Sync call.
type SyncError struct {
	Failures []RecordError
}

func (e *SyncError) Error() string {
	const shown = 3
	var b strings.Builder
	fmt.Fprintf(&b, "sync: %d record(s) failed", len(e.Failures))
	for i, f := range e.Failures {
		if i == shown {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-shown)
			break
		}
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *SyncError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// SourceFiles returns the distinct workbooks behind failed records.
func (e *SyncError) SourceFiles() []string {
	var files []string
	for _, f := range e.Failures {
		if f.SourceFile != "" && !slices.Contains(files, f.SourceFile) {
			files = append(files, f.SourceFile)
		}
	}
	return files
}

// Engine diffs extracted records against the remote store and applies the
// minimal set of inserts and updates.
type Engine struct {
	store store.Store
	cfg   Config
	now   func() time.Time

	// reported holds remote-only keys already emitted as Deleted.
	mu       gosync.Mutex
	reported map[models.RecordKey]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for ChangeRecord.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine over st.
func NewEngine(st store.Store, cfg Config, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("sync engine requires a store")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	e := &Engine{store: st, cfg: cfg, now: time.Now, reported: make(map[models.RecordKey]struct{})}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Sync applies records in batches and returns the changes made.
//
// Failures are contained per record: a batch whose lookup exhausts its
// retries is skipped and every one of its records is reported in the
// returned *SyncError alongside the changes that did succeed. Only context
// cancellation aborts the run early.
func (e *Engine) Sync(ctx context.Context, records []models.MonthlyReservationRecord) ([]models.ChangeRecord, error) {
	log := logging.Ctx(ctx).With().Str("component", "sync").Logger()

	var (
		changes  []models.ChangeRecord
		failures []RecordError
	)

	for start := 0; start < len(records); start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return changes, err
		}
		batch := records[start:min(start+e.cfg.BatchSize, len(records))]

		batchChanges, batchFailures, err := e.syncBatch(ctx, batch)
		if err != nil {
			return append(changes, batchChanges...), err
		}
		changes = append(changes, batchChanges...)
		failures = append(failures, batchFailures...)
	}

	if e.cfg.DetectDeletions {
		deleted, err := e.detectDeletions(ctx, records)
		if err != nil {
			if ctx.Err() != nil {
				return changes, ctx.Err()
			}
			log.Warn().Err(err).Msg("Deletion check failed")
		}
		changes = append(changes, deleted...)
	}

	for kind, n := range models.CountByKind(changes) {
		metrics.ChangesTotal.WithLabelValues(string(kind)).Add(float64(n))
	}

	log.Info().
		Int("records", len(records)).
		Int("changes", len(changes)).
		Int("failed", len(failures)).
		Msg("Sync complete")

	if len(failures) > 0 {
		return changes, &SyncError{Failures: failures}
	}
	return changes, nil
}

func (e *Engine) syncBatch(ctx context.Context, batch []models.MonthlyReservationRecord) ([]models.ChangeRecord, []RecordError, error) {
	log := logging.Ctx(ctx)

	keys := make([]models.RecordKey, len(batch))
	for i, rec := range batch {
		keys[i] = rec.Key
	}

	existing, err := retry.DoValue(ctx, "store fetch", e.cfg.Retry, func(ctx context.Context) (map[models.RecordKey]store.Row, error) {
		return e.store.Fetch(ctx, keys)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		log.Warn().Err(err).Int("records", len(batch)).Msg("Batch lookup failed, skipping batch")
		failures := make([]RecordError, len(batch))
		for i, rec := range batch {
			failures[i] = RecordError{Key: rec.Key, SourceFile: rec.SourceFile, Op: "fetch", Err: err}
		}
		return nil, failures, nil
	}

	var (
		changes  []models.ChangeRecord
		failures []RecordError
	)
	for _, rec := range batch {
		row, found := existing[rec.Key]
		switch {
		case !found:
			if err := e.write(ctx, "insert", rec, e.store.Insert); err != nil {
				failures = append(failures, RecordError{Key: rec.Key, SourceFile: rec.SourceFile, Op: "insert", Err: err})
				continue
			}
			changes = append(changes, e.change(models.ChangeNew, rec.Key, "", strconv.Itoa(len(rec.ReservationCounts))))

		case !models.CountsEqual(row.ReservationCounts, rec.ReservationCounts):
			if err := e.write(ctx, "update", rec, e.store.Update); err != nil {
				failures = append(failures, RecordError{Key: rec.Key, SourceFile: rec.SourceFile, Op: "update", Err: err})
				continue
			}
			changes = append(changes, e.change(models.ChangeChanged, rec.Key,
				strconv.Itoa(len(row.ReservationCounts)), strconv.Itoa(len(rec.ReservationCounts))))
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return changes, failures, ctxErr
	}
	return changes, failures, nil
}

func (e *Engine) write(ctx context.Context, op string, rec models.MonthlyReservationRecord, fn func(context.Context, models.MonthlyReservationRecord) error) error {
	err := retry.Do(ctx, "store "+op, e.cfg.Retry, func(ctx context.Context) error {
		return fn(ctx, rec)
	})
	if err != nil && ctx.Err() == nil {
		logging.Ctx(ctx).Warn().Err(err).Stringer("key", rec.Key).Str("op", op).Msg("Record write failed")
	}
	return err
}

func (e *Engine) change(kind models.ChangeKind, key models.RecordKey, oldValue, newValue string) models.ChangeRecord {
	return models.ChangeRecord{
		Kind:       kind,
		TenantID:   key.TenantID,
		FacilityID: key.FacilityID,
		Period:     key.Period(),
		OldValue:   oldValue,
		NewValue:   newValue,
		UpdatedAt:  e.now(),
	}
}

type facilityYear struct {
	tenant, facility, year int
}

// detectDeletions reports remote months missing from this extraction for the
// facilities that were extracted. Nothing is deleted remotely, so each missing
// key is reported once until it is extracted again.
func (e *Engine) detectDeletions(ctx context.Context, records []models.MonthlyReservationRecord) ([]models.ChangeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	extracted := make(map[models.RecordKey]struct{}, len(records))
	var groups []facilityYear
	for _, rec := range records {
		extracted[rec.Key] = struct{}{}
		delete(e.reported, rec.Key)
		g := facilityYear{rec.Key.TenantID, rec.Key.FacilityID, rec.Key.Year}
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}

	var (
		deleted []models.ChangeRecord
		errs    []error
	)
	for _, g := range groups {
		keys, err := retry.DoValue(ctx, "store list", e.cfg.Retry, func(ctx context.Context) ([]models.RecordKey, error) {
			return e.store.ListFacilityYear(ctx, g.tenant, g.facility, g.year)
		})
		if err != nil {
			if ctx.Err() != nil {
				return deleted, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		for _, k := range keys {
			if _, ok := extracted[k]; ok {
				continue
			}
			if _, seen := e.reported[k]; seen {
				continue
			}
			e.reported[k] = struct{}{}
			deleted = append(deleted, e.change(models.ChangeDeleted, k, "", ""))
		}
	}
	return deleted, errors.Join(errs...)
}
