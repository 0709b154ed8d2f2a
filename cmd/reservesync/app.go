// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/reservesync/internal/cache"
	"github.com/tomtom215/reservesync/internal/config"
	"github.com/tomtom215/reservesync/internal/detect"
	"github.com/tomtom215/reservesync/internal/extract"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/notify"
	"github.com/tomtom215/reservesync/internal/pipeline"
	"github.com/tomtom215/reservesync/internal/report"
	"github.com/tomtom215/reservesync/internal/retry"
	"github.com/tomtom215/reservesync/internal/store"
	syncpkg "github.com/tomtom215/reservesync/internal/sync"
)

// app holds the wired pipeline components.
type app struct {
	cfg      *config.Config
	store    store.Store
	detector *detect.Detector
	health   *pipeline.HealthChecker
	orch     *pipeline.Orchestrator
}

type appOptions struct {
	// snapshots opens the fingerprint snapshot store. The check command
	// leaves it closed so it can run next to a live service.
	snapshots bool
}

// newApp opens the store and builds every pipeline stage from cfg.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	policy := retry.Policy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}
	a := &app{cfg: cfg, store: st}

	fingerprints := cache.New[string, models.FileFingerprint](
		cache.WithName("fingerprints"),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
	)
	var detectOpts []detect.Option
	if opts.snapshots && cfg.Cache.SnapshotDir != "" {
		snap, err := detect.OpenBadgerStore(cfg.Cache.SnapshotDir)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		detectOpts = append(detectOpts, detect.WithSnapshotStore(snap))
	}
	a.detector = detect.New(detect.Config{
		Pattern:     cfg.Workbook.Pattern,
		Concurrency: cfg.Workbook.DetectConcurrency,
		LockTimeout: cfg.Workbook.LockTimeout,
		Retry:       policy,
	}, fingerprints, nil, detectOpts...)

	facilities := make(extract.FacilityMap, 0, len(cfg.Facilities.Map))
	for _, m := range cfg.Facilities.Map {
		facilities = append(facilities, extract.FacilityMapping{Match: m.Match, ID: m.ID})
	}
	extractor, err := extract.New(extract.Config{
		TenantID:    cfg.Facilities.TenantID,
		SheetName:   cfg.Workbook.SheetName,
		DateColumn:  cfg.Workbook.DateColumn,
		CountColumn: cfg.Workbook.CountColumn,
		HeaderRows:  cfg.Workbook.HeaderRows,
		LockTimeout: cfg.Workbook.LockTimeout,
		Pattern:     cfg.Workbook.Pattern,
		Retry:       policy,
	}, facilities)
	if err != nil {
		a.release()
		return nil, err
	}

	engine, err := syncpkg.NewEngine(st, syncpkg.Config{
		BatchSize:       cfg.Store.BatchSize,
		DetectDeletions: cfg.Store.DetectDeletions,
		Retry:           policy,
	})
	if err != nil {
		a.release()
		return nil, err
	}

	a.health = pipeline.NewHealthChecker(0, pipeline.DefaultChecks(cfg, st)...)
	a.orch, err = pipeline.New(pipeline.Config{
		BasePath:              cfg.Workbook.BasePath,
		Interval:              cfg.Pipeline.Interval,
		CycleTimeout:          cfg.Pipeline.CycleTimeout,
		HealthInterval:        cfg.Pipeline.HealthInterval,
		FailureNotifyInterval: cfg.Pipeline.FailureNotifyInterval,
		FailureCeiling:        cfg.Pipeline.FailureCeiling,
		ShutdownGrace:         cfg.Pipeline.ShutdownGrace,
	}, pipeline.Deps{
		Detector:  a.detector,
		Extractor: extractor,
		Syncer:    engine,
		Store:     st,
		Reports:   report.NewWriter(cfg.Report.Dir),
		Notifier:  notify.New(cfg.Notify, policy),
		Health:    a.health,
	})
	if err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

// close persists fingerprints and closes the store.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.orch.Close(ctx); err != nil {
		logging.Warn().Err(err).Msg("Shutdown incomplete")
	}
}

// release frees resources without persisting fingerprints.
func (a *app) release() {
	if err := a.detector.Release(); err != nil {
		logging.Warn().Err(err).Msg("Release fingerprint store")
	}
	if err := a.store.Close(); err != nil {
		logging.Warn().Err(err).Msg("Close store")
	}
}
