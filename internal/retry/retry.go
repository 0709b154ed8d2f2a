// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package retry wraps fallible operations with capped exponential backoff.
//
// Delays start at Policy.InitialDelay and double on every attempt up to
// Policy.MaxDelay. Sleeps observe context cancellation. Errors wrapped with
// Permanent are returned immediately without consuming further attempts.
//
//	err := retry.Do(ctx, "enumerate", retry.DefaultPolicy(), func(ctx context.Context) error {
//	    return listFiles(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/reservesync/internal/logging"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// The operation is invoked at most MaxRetries+1 times.
	MaxRetries int

	// InitialDelay is the sleep before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps every individual sleep.
	MaxDelay time.Duration
}

// DefaultPolicy returns 3 retries starting at 1s, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: max retry attempts reached after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

// newBackOff builds the backoff schedule for a single invocation.
// A fresh schedule is built per call so no state is shared between operations.
func newBackOff(ctx context.Context, p Policy) backoff.BackOffContext {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 || maxDelay < initial {
		maxDelay = initial
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do invokes fn until it succeeds, returns a permanent error, the retry budget
// is exhausted, or ctx is cancelled.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero     T
		attempts int
		lastErr  error
	)

	operation := func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			lastErr = err
		}
		return v, err
	}

	notify := func(err error, delay time.Duration) {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempts).
			Int("max_attempts", p.MaxRetries+1).
			Dur("delay", delay).
			Msg("Retry attempt")
	}

	v, err := backoff.RetryNotifyWithData(operation, newBackOff(ctx, p), notify)
	if err == nil {
		return v, nil
	}

	// backoff unwraps permanent errors; re-mark them so callers can still classify.
	if lastErr != nil && IsPermanent(lastErr) {
		return zero, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return zero, ctxErr
	}
	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: err}
}
