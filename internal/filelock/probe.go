// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package filelock decides whether a workbook is free to read.
//
// A file held exclusively by another process (a spreadsheet open in an
// editor, a half-written copy on a network share) is a normal condition,
// not an error: IsUnlocked simply reports false and the caller skips the
// file for this cycle.
package filelock

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
)

// Defaults for the probe.
const (
	DefaultAttempts = 3
	DefaultStep     = 100 * time.Millisecond
	DefaultTimeout  = 2 * time.Second
)

// File is the subset of *os.File the probe needs.
type File interface {
	io.Closer
	Fd() uintptr
}

// Opener opens a file for reading without requesting exclusive access.
type Opener interface {
	Open(path string) (File, error)
}

// OSOpener opens files read-only through the operating system.
type OSOpener struct{}

// Open implements Opener.
func (OSOpener) Open(path string) (File, error) {
	return os.OpenFile(path, os.O_RDONLY, 0) // #nosec G304 -- paths come from the configured workbook root
}

// Probe checks workbook availability with short bounded retries.
type Probe struct {
	opener   Opener
	attempts int
	step     time.Duration
}

// Option configures a Probe.
type Option func(*Probe)

// WithOpener replaces the OS opener, mainly for tests.
func WithOpener(o Opener) Option {
	return func(p *Probe) { p.opener = o }
}

// WithAttempts sets the number of open attempts (default 3).
func WithAttempts(n int) Option {
	return func(p *Probe) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithStep sets the linear backoff unit (default 100ms): attempt k sleeps k*step.
func WithStep(d time.Duration) Option {
	return func(p *Probe) {
		if d >= 0 {
			p.step = d
		}
	}
}

// NewProbe creates a Probe.
func NewProbe(opts ...Option) *Probe {
	p := &Probe{
		opener:   OSOpener{},
		attempts: DefaultAttempts,
		step:     DefaultStep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsLockMarker reports whether name is an editor lock or swap file that must
// never be read: Office owner files (~$Book.xlsx), LibreOffice lock files
// (.~lock.Book.xlsx#) and Office temp saves (~ABCD.tmp).
func IsLockMarker(name string) bool {
	base := filepath.Base(name)
	switch {
	case strings.Contains(base, "~$"):
		return true
	case strings.HasPrefix(base, ".~lock."):
		return true
	case strings.HasPrefix(base, "~") && strings.HasSuffix(strings.ToLower(base), ".tmp"):
		return true
	}
	return false
}

// IsUnlocked reports whether path can be opened for shared reading.
// It never returns an error: any I/O or permission failure yields false.
// Retries are bounded by timeout and ctx.
func (p *Probe) IsUnlocked(ctx context.Context, path string, timeout time.Duration) bool {
	if IsLockMarker(path) {
		logging.Ctx(ctx).Debug().Str("path", path).Msg("Skipping editor lock marker")
		return false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		if lastErr = p.tryOnce(path); lastErr == nil {
			return true
		}

		if attempt == p.attempts {
			break
		}
		wait := time.Duration(attempt) * p.step
		if time.Now().Add(wait).After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}

	logging.Ctx(ctx).Debug().
		Err(lastErr).
		Str("path", path).
		Int("attempts", p.attempts).
		Msg("Workbook locked or unreadable")
	return false
}

// tryOnce opens the file and takes then releases a shared advisory lock.
func (p *Probe) tryOnce(path string) (err error) {
	f, err := p.opener.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return tryShared(f)
}
