// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package parallel runs a worker over a collection with a fixed concurrency
// ceiling. A failing item never cancels its siblings; failures are returned
// together once every item has finished.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/reservesync/internal/logging"
)

// DefaultProgressEvery is the completion interval between progress log lines.
const DefaultProgressEvery = 100

// Options tunes ProcessAll.
type Options struct {
	// MaxConcurrency bounds simultaneous workers. Values < 1 mean 1.
	MaxConcurrency int

	// Label identifies the batch in logs.
	Label string

	// ProgressEvery logs progress after this many completions. Default 100.
	ProgressEvery int
}

// ItemError records the failure of a single item.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BatchError aggregates the item failures of one ProcessAll call.
type BatchError struct {
	Label    string
	Total    int
	Failures []ItemError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d items failed", e.Label, len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-3)
			break
		}
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// ErrPanic wraps a recovered worker panic.
var ErrPanic = errors.New("worker panicked")

// ProcessAll runs worker over items with at most opts.MaxConcurrency
// concurrent invocations and returns the results of the successful items.
//
// Result order is unspecified. When any item fails, the returned error is a
// *BatchError listing every failure; the successful results are still
// returned. Items not yet started when ctx is cancelled are recorded as
// failures carrying ctx.Err().
func ProcessAll[T, R any](ctx context.Context, items []T, worker func(ctx context.Context, item T) (R, error), opts Options) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	limit := opts.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	label := opts.Label
	if label == "" {
		label = "batch"
	}

	var (
		mu        sync.Mutex
		results   = make([]R, 0, len(items))
		failures  []ItemError
		completed atomic.Int64
	)

	record := func(idx int, r R, err error) {
		mu.Lock()
		if err != nil {
			failures = append(failures, ItemError{Index: idx, Err: err})
		} else {
			results = append(results, r)
		}
		mu.Unlock()

		if n := completed.Add(1); n%int64(every) == 0 && int(n) < len(items) {
			logging.Ctx(ctx).Info().
				Str("batch", label).
				Int64("completed", n).
				Int("total", len(items)).
				Msg("Batch progress")
		}
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := range items {
		idx := i
		if err := ctx.Err(); err != nil {
			var zero R
			record(idx, zero, err)
			continue
		}
		g.Go(func() error {
			r, err := runItem(ctx, items[idx], worker)
			record(idx, r, err)
			// Errors are collected above so the group never short-circuits.
			return nil
		})
	}
	_ = g.Wait()

	logging.Ctx(ctx).Info().
		Str("batch", label).
		Int("total", len(items)).
		Int("succeeded", len(results)).
		Int("failed", len(failures)).
		Msg("Batch complete")

	if len(failures) > 0 {
		return results, &BatchError{Label: label, Total: len(items), Failures: failures}
	}
	return results, nil
}

// runItem invokes worker with panic recovery. An item whose slot was acquired
// after cancellation is not started.
func runItem[T, R any](ctx context.Context, item T, worker func(context.Context, T) (R, error)) (r R, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return r, ctxErr
	}

	defer func() {
		if p := recover(); p != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("Recovered worker panic")
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	return worker(ctx, item)
}
