// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/reservesync/internal/cache"
	"github.com/tomtom215/reservesync/internal/filelock"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/parallel"
	"github.com/tomtom215/reservesync/internal/retry"
)

// DefaultPattern matches workbooks at any depth below the base path.
const DefaultPattern = "**/*.xlsx"

// LockProbe reports whether a file can be read without contending with an
// exclusive holder. *filelock.Probe satisfies it.
type LockProbe interface {
	IsUnlocked(ctx context.Context, path string, timeout time.Duration) bool
}

// Config tunes enumeration and per-file probing.
type Config struct {
	Pattern     string
	Concurrency int
	LockTimeout time.Duration
	Retry       retry.Policy
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		Pattern:     DefaultPattern,
		Concurrency: 4,
		LockTimeout: 2 * time.Second,
		Retry:       retry.DefaultPolicy(),
	}
}

// FileChange describes one workbook whose fingerprint moved.
type FileChange struct {
	Path        string
	Fingerprint models.FileFingerprint
	// New is true when the file had no cached fingerprint.
	New bool
}

// Result summarises one detection pass.
type Result struct {
	Changed   bool
	Files     []FileChange
	Scanned   int
	Locked    int
	Unchanged int
	Failed    int
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeChanged
	outcomeLocked
)

func (o outcome) String() string {
	switch o {
	case outcomeChanged:
		return "changed"
	case outcomeLocked:
		return "locked"
	default:
		return "unchanged"
	}
}

type fileResult struct {
	outcome outcome
	change  FileChange
}

// Detector finds workbooks whose content changed since the previous pass.
// It exclusively owns the fingerprint cache.
type Detector struct {
	cfg          Config
	fingerprints *cache.TTLCache[string, models.FileFingerprint]
	probe        LockProbe
	fsys         func(basePath string) fs.FS
	snapshots    FingerprintStore
	logger       zerolog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithFS replaces os.DirFS as the file-system accessor.
func WithFS(fn func(basePath string) fs.FS) Option {
	return func(d *Detector) {
		d.fsys = fn
	}
}

// WithSnapshotStore enables fingerprint persistence across restarts.
func WithSnapshotStore(s FingerprintStore) Option {
	return func(d *Detector) {
		d.snapshots = s
	}
}

// New creates a Detector. A nil probe uses filelock.NewProbe().
func New(cfg Config, fingerprints *cache.TTLCache[string, models.FileFingerprint], probe LockProbe, opts ...Option) *Detector {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * time.Second
	}
	if probe == nil {
		probe = filelock.NewProbe()
	}
	if fingerprints == nil {
		fingerprints = cache.New[string, models.FileFingerprint](cache.WithName("fingerprints"))
	}

	d := &Detector{
		cfg:          cfg,
		fingerprints: fingerprints,
		probe:        probe,
		fsys:         func(basePath string) fs.FS { return os.DirFS(basePath) },
		logger:       logging.With().Str("component", "detector").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fingerprints exposes the cache so its sweeper can be supervised.
func (d *Detector) Fingerprints() *cache.TTLCache[string, models.FileFingerprint] {
	return d.fingerprints
}

// ListWorkbooks enumerates files under basePath matching pattern, returned as
// slash-separated paths relative to basePath. Lock-marker files are dropped.
// Enumeration is retried because network shares fail transiently.
func ListWorkbooks(ctx context.Context, fsys fs.FS, pattern string, policy retry.Policy) ([]string, error) {
	matches, err := retry.DoValue(ctx, "enumerate workbooks", policy, func(ctx context.Context) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, retry.Permanent(err)
		}
		return doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", pattern, err)
	}

	out := matches[:0]
	for _, m := range matches {
		if filelock.IsLockMarker(path.Base(m)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// DetectChanges fingerprints every workbook under basePath and reports
// whether at least one changed. Locked files are skipped for this pass.
// Per-file failures are counted and logged; they do not fail the pass.
func (d *Detector) DetectChanges(ctx context.Context, basePath string) (Result, error) {
	log := logging.Ctx(ctx).With().Str("component", "detector").Logger()
	fsys := d.fsys(basePath)

	files, err := ListWorkbooks(ctx, fsys, d.cfg.Pattern, d.cfg.Retry)
	if err != nil {
		return Result{}, err
	}

	results, err := parallel.ProcessAll(ctx, files, func(ctx context.Context, rel string) (fileResult, error) {
		return d.inspect(ctx, basePath, fsys, rel)
	}, parallel.Options{MaxConcurrency: d.cfg.Concurrency, Label: "detect"})

	res := Result{Scanned: len(files)}
	for _, r := range results {
		metrics.FilesScanned.WithLabelValues(r.outcome.String()).Inc()
		switch r.outcome {
		case outcomeChanged:
			res.Files = append(res.Files, r.change)
		case outcomeLocked:
			res.Locked++
		default:
			res.Unchanged++
		}
	}
	res.Changed = len(res.Files) > 0

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Failed = res.Scanned - len(results)
		metrics.FilesScanned.WithLabelValues("failed").Add(float64(res.Failed))
		log.Warn().Err(err).Int("failed", res.Failed).Msg("Some workbooks could not be fingerprinted")
	}

	log.Info().
		Int("scanned", res.Scanned).
		Int("changed", len(res.Files)).
		Int("unchanged", res.Unchanged).
		Int("locked", res.Locked).
		Int("failed", res.Failed).
		Msg("Change detection complete")

	return res, nil
}

func (d *Detector) inspect(ctx context.Context, basePath string, fsys fs.FS, rel string) (fileResult, error) {
	abs := filepath.Join(basePath, filepath.FromSlash(rel))

	if !d.probe.IsUnlocked(ctx, abs, d.cfg.LockTimeout) {
		logging.Ctx(ctx).Debug().Str("path", abs).Msg("Workbook locked, skipping this cycle")
		return fileResult{outcome: outcomeLocked}, nil
	}

	info, err := fs.Stat(fsys, rel)
	if err != nil {
		return fileResult{}, fmt.Errorf("stat %s: %w", rel, err)
	}

	cached, ok := d.fingerprints.Get(abs)
	if ok && cached.SameModTime(info.ModTime()) && cached.Size == info.Size() {
		// Re-set so workbooks that never change keep their fingerprint past the TTL.
		d.fingerprints.Set(abs, cached)
		return fileResult{outcome: outcomeUnchanged}, nil
	}

	hash, err := hashFile(fsys, rel)
	if err != nil {
		return fileResult{}, err
	}

	fp := models.FileFingerprint{
		Path:    abs,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Hash:    hash,
	}
	d.fingerprints.Set(abs, fp)

	if ok && cached.Hash == hash {
		// Touched but identical content; the refreshed mod time restores the fast path.
		return fileResult{outcome: outcomeUnchanged}, nil
	}
	return fileResult{
		outcome: outcomeChanged,
		change:  FileChange{Path: abs, Fingerprint: fp, New: !ok},
	}, nil
}

func hashFile(fsys fs.FS, rel string) (string, error) {
	f, err := fsys.Open(rel)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", rel, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Forget drops the cached fingerprint for path so the next pass treats it as new.
func (d *Detector) Forget(path string) {
	d.fingerprints.Delete(path)
}

// Restore loads persisted fingerprints into the cache.
func (d *Detector) Restore(ctx context.Context) error {
	if d.snapshots == nil {
		return nil
	}
	fps, err := d.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore fingerprints: %w", err)
	}
	for _, fp := range fps {
		d.fingerprints.Set(fp.Path, fp)
	}
	d.logger.Info().Int("fingerprints", len(fps)).Msg("Restored fingerprint snapshot")
	return nil
}

// Persist writes the current fingerprints to the snapshot store.
func (d *Detector) Persist(ctx context.Context) error {
	if d.snapshots == nil {
		return nil
	}
	snap := d.fingerprints.Snapshot()
	fps := make([]models.FileFingerprint, 0, len(snap))
	for _, fp := range snap {
		fps = append(fps, fp)
	}
	if err := d.snapshots.Save(ctx, fps); err != nil {
		return fmt.Errorf("persist fingerprints: %w", err)
	}
	d.logger.Debug().Int("fingerprints", len(fps)).Msg("Persisted fingerprint snapshot")
	return nil
}

// Release clears the fingerprint cache and closes the snapshot store.
func (d *Detector) Release() error {
	d.fingerprints.Clear()
	if d.snapshots == nil {
		return nil
	}
	return d.snapshots.Close()
}
