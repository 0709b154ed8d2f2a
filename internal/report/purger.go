// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package report

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
)

// Purger removes audit files older than the retention window.
type Purger struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewPurger returns a Purger for dir. retentionDays <= 0 disables purging.
func NewPurger(dir string, retentionDays int, interval time.Duration) *Purger {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Purger{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
	}
}

// Purge deletes expired audit files and returns how many were removed.
func (p *Purger) Purge() (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	names, err := doublestar.Glob(os.DirFS(p.dir), "*"+FileSuffix, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := p.now().Add(-p.retention)
	var (
		removed int
		errs    []error
	)
	for _, name := range names {
		path := filepath.Join(p.dir, name)
		created, err := p.createdAt(path, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to remove expired report")
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ReportsPurged.Add(float64(removed))
		logging.Info().Int("deleted_count", removed).Str("dir", p.dir).Msg("Report retention applied")
	}
	return removed, errors.Join(errs...)
}

// createdAt prefers the timestamp encoded in the file name and falls back to
// the modification time for renamed files.
func (p *Purger) createdAt(path, name string) (time.Time, error) {
	stamp := strings.TrimSuffix(name, FileSuffix)
	if len(stamp) >= len(TimestampLayout) {
		if t, err := time.ParseInLocation(TimestampLayout, stamp[:len(TimestampLayout)], time.Local); err == nil {
			return t, nil
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Serve implements suture.Service. It purges once at start and then on
// every interval until ctx is cancelled.
func (p *Purger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Purge(); err != nil {
			logging.Error().Err(err).Msg("Report retention failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (p *Purger) String() string {
	return "report-purger"
}
