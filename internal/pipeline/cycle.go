// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tomtom215/reservesync/internal/detect"
	"github.com/tomtom215/reservesync/internal/extract"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/report"
	syncpkg "github.com/tomtom215/reservesync/internal/sync"
)

// cycle runs one detect, extract, sync, report, notify pass.
//
// Workbooks whose content could not be fully applied are forgotten by the
// detector so the next cycle picks them up again even if they do not change.
func (o *Orchestrator) cycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: logging.NewCycleID()}
	ctx = logging.ContextWithCycleID(ctx, res.ID)
	log := logging.Ctx(ctx)

	detected, err := o.deps.Detector.DetectChanges(ctx, o.cfg.BasePath)
	if err != nil {
		return res, fmt.Errorf("detect: %w", err)
	}
	if !detected.Changed {
		log.Debug().Int("scanned", detected.Scanned).Msg("No workbook changes")
		return res, nil
	}
	res.Changed = true

	extracted, err := o.deps.Extractor.ExtractAll(ctx, o.cfg.BasePath)
	if err != nil {
		o.forgetChanged(detected)
		return res, fmt.Errorf("extract: %w", err)
	}
	res.Extracted = len(extracted.Records)
	o.forgetUnread(extracted)

	changes, syncErr := o.deps.Syncer.Sync(ctx, extracted.Records)
	res.Changes = changes
	var partial *syncpkg.SyncError
	switch {
	case errors.As(syncErr, &partial):
		for _, path := range partial.SourceFiles() {
			o.deps.Detector.Forget(path)
		}
	case syncErr != nil:
		o.forgetChanged(detected)
	}

	// Changes that reached the store are reported even when the sync was partial.
	if len(changes) > 0 {
		path, err := o.deps.Reports.Write(changes, o.now())
		if err != nil {
			log.Error().Err(err).Msg("Audit report not written")
		}
		res.ReportPath = path
		o.announce(ctx, res)
	}

	if err := o.deps.Detector.Persist(ctx); err != nil {
		log.Warn().Err(err).Msg("Fingerprint snapshot not persisted")
	}

	if syncErr != nil {
		return res, fmt.Errorf("sync: %w", syncErr)
	}

	log.Info().
		Int("records", res.Extracted).
		Int("changes", len(res.Changes)).
		Str("report", res.ReportPath).
		Msg("Cycle complete")
	return res, nil
}

func (o *Orchestrator) announce(ctx context.Context, res CycleResult) {
	text := report.Summarize(res.Changes)
	if res.ReportPath != "" {
		text += "\nReport: " + filepath.Base(res.ReportPath)
	}
	if err := o.deps.Notifier.Send(ctx, text); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("notifier", o.deps.Notifier.Name()).Msg("Change notification not delivered")
	}
}

func (o *Orchestrator) forgetChanged(detected detect.Result) {
	for _, f := range detected.Files {
		o.deps.Detector.Forget(f.Path)
	}
}

// forgetUnread drops fingerprints of workbooks that were locked or unreadable
// during extraction. Unmapped workbooks stay cached; rereading them cannot help.
func (o *Orchestrator) forgetUnread(extracted extract.Result) {
	for _, f := range extracted.Files {
		switch f.Status {
		case extract.StatusOK, extract.StatusSkippedUnmapped:
		default:
			o.deps.Detector.Forget(f.Path)
		}
	}
}
