// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tomtom215/reservesync/internal/filelock"
	"github.com/tomtom215/reservesync/internal/logging"
)

// Triggerer is satisfied by *Orchestrator.
type Triggerer interface {
	Trigger()
}

// Watcher triggers a cycle shortly after workbooks under the base path change,
// so edits are picked up without waiting for the next interval.
type Watcher struct {
	basePath string
	pattern  string
	debounce time.Duration
	target   Triggerer
	logger   zerolog.Logger

	watching map[string]bool
}

// NewWatcher creates a watcher. A debounce <= 0 uses 2s.
func NewWatcher(basePath, pattern string, debounce time.Duration, target Triggerer) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if pattern == "" {
		pattern = "**/*.xlsx"
	}
	return &Watcher{
		basePath: filepath.Clean(basePath),
		pattern:  pattern,
		debounce: debounce,
		target:   target,
		logger:   logging.WithComponent("watcher"),
	}
}

// Serve implements suture.Service. Bursts of events are coalesced: the
// trigger fires once no relevant event arrived for the debounce period.
func (w *Watcher) Serve(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	w.watching = make(map[string]bool)
	if err := w.addTree(fw, w.basePath); err != nil {
		return err
	}
	w.logger.Info().Str("path", w.basePath).Int("dirs", len(w.watching)).Msg("Watching workbooks")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(fw, event.Name)
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Workbook event")
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn().Err(err).Msg("Filesystem watcher error")

		case <-timer.C:
			w.logger.Debug().Msg("Workbook changes settled, triggering cycle")
			w.target.Trigger()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Watcher) String() string {
	return "workbook-watcher"
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if !d.IsDir() || w.watching[path] {
			return nil
		}
		if err := fw.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch subdirectory")
			return nil
		}
		w.watching[path] = true
		return nil
	})
}

// relevant reports whether event concerns a workbook matching the pattern.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || filelock.IsLockMarker(base) {
		return false
	}
	rel, err := filepath.Rel(w.basePath, event.Name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}
