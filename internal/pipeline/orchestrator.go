// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/reservesync/internal/detect"
	"github.com/tomtom215/reservesync/internal/extract"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/notify"
	"github.com/tomtom215/reservesync/internal/store"
)

// ErrFailureCeiling is returned by Serve after too many consecutive failed cycles.
var ErrFailureCeiling = errors.New("pipeline: consecutive failure ceiling reached")

// ChangeDetector is satisfied by *detect.Detector.
type ChangeDetector interface {
	DetectChanges(ctx context.Context, basePath string) (detect.Result, error)
	Forget(path string)
	Restore(ctx context.Context) error
	Persist(ctx context.Context) error
	Release() error
}

// WorkbookExtractor is satisfied by *extract.Extractor.
type WorkbookExtractor interface {
	ExtractAll(ctx context.Context, basePath string) (extract.Result, error)
}

// Syncer is satisfied by *sync.Engine.
type Syncer interface {
	Sync(ctx context.Context, records []models.MonthlyReservationRecord) ([]models.ChangeRecord, error)
}

// ReportWriter is satisfied by *report.Writer.
type ReportWriter interface {
	Write(changes []models.ChangeRecord, now time.Time) (string, error)
}

// Config tunes the orchestration loop.
type Config struct {
	BasePath              string
	Interval              time.Duration
	CycleTimeout          time.Duration
	HealthInterval        time.Duration
	FailureNotifyInterval time.Duration
	FailureCeiling        int
	ShutdownGrace         time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.CycleTimeout <= 0 || c.CycleTimeout > c.Interval {
		c.CycleTimeout = c.Interval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = time.Hour
	}
	if c.FailureNotifyInterval <= 0 {
		c.FailureNotifyInterval = 10 * time.Minute
	}
	if c.FailureCeiling <= 0 {
		c.FailureCeiling = 10
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 20 * time.Second
	}
}

// Deps are the stages driven by the orchestrator.
type Deps struct {
	Detector  ChangeDetector
	Extractor WorkbookExtractor
	Syncer    Syncer
	Store     store.Store
	Reports   ReportWriter
	Notifier  notify.Notifier
	Health    *HealthChecker
}

// CycleResult summarises one cycle.
type CycleResult struct {
	ID         string
	Changed    bool
	Extracted  int
	Changes    []models.ChangeRecord
	ReportPath string
	Duration   time.Duration
}

// Orchestrator runs detect, extract, sync, report and notify on a schedule.
// Cycles never overlap; Serve runs them on a single goroutine.
type Orchestrator struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	trigger chan struct{}

	failureNotice rate.Sometimes

	mu         sync.RWMutex
	state      State
	health     models.PipelineHealth
	lastReport HealthReport

	releaseOnce sync.Once
	releaseErr  error
}

// New validates deps and returns an Orchestrator in StateStarting.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Detector == nil || deps.Extractor == nil || deps.Syncer == nil || deps.Reports == nil {
		return nil, errors.New("pipeline requires detector, extractor, syncer and report writer")
	}
	if cfg.BasePath == "" {
		return nil, errors.New("pipeline requires a base path")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker(0)
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:           cfg,
		deps:          deps,
		now:           time.Now,
		trigger:       make(chan struct{}, 1),
		failureNotice: rate.Sometimes{Interval: cfg.FailureNotifyInterval},
	}
	o.setState(StateStarting)
	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Health returns a copy of the transient health counters.
func (o *Orchestrator) Health() models.PipelineHealth {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.health
}

// LastHealthReport returns the most recent health check result. Its
// Timestamp is zero before the first check.
func (o *Orchestrator) LastHealthReport() HealthReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastReport
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()

	metrics.PipelineState.Set(float64(s))
	if prev != s {
		logging.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Pipeline state changed")
	}
}

// settle returns to Running or Degraded depending on the failure streak.
func (o *Orchestrator) settle() {
	o.mu.RLock()
	failing := o.health.ConsecutiveFailures > 0
	o.mu.RUnlock()
	if failing {
		o.setState(StateDegraded)
		return
	}
	o.setState(StateRunning)
}

// Trigger requests an immediate cycle. Requests made while one is pending coalesce.
func (o *Orchestrator) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service. It runs a cycle immediately and then on
// every interval or trigger until ctx is cancelled or the failure ceiling is hit.
func (o *Orchestrator) Serve(ctx context.Context) error {
	log := logging.WithComponent("pipeline")

	if err := o.deps.Detector.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting without fingerprint snapshot")
	}
	o.setState(StateRunning)
	log.Info().
		Str("base_path", o.cfg.BasePath).
		Dur("interval", o.cfg.Interval).
		Dur("cycle_timeout", o.cfg.CycleTimeout).
		Msg("Pipeline started")

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	healthTicker := time.NewTicker(o.cfg.HealthInterval)
	defer healthTicker.Stop()

	o.checkHealth(ctx)
	for {
		if _, err := o.guardedCycle(ctx); errors.Is(err, ErrFailureCeiling) {
			o.stop()
			return err
		}
		if !o.wait(ctx, ticker.C, healthTicker.C) {
			o.stop()
			return ctx.Err()
		}
	}
}

// wait blocks until the next cycle is due, running health checks meanwhile.
// It returns false when ctx is cancelled.
func (o *Orchestrator) wait(ctx context.Context, tick, healthTick <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-healthTick:
			o.checkHealth(ctx)
		case <-tick:
			return true
		case <-o.trigger:
			return true
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (o *Orchestrator) String() string {
	return "pipeline-orchestrator"
}

// RunOnce runs a single cycle outside the schedule, for one-shot invocations.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleResult, error) {
	if err := o.deps.Detector.Restore(ctx); err != nil {
		logging.Warn().Err(err).Msg("Starting without fingerprint snapshot")
	}
	o.setState(StateRunning)
	return o.guardedCycle(ctx)
}

// guardedCycle runs one cycle under the cycle timeout. On shutdown the cycle
// keeps running for the grace period before its context is cancelled.
func (o *Orchestrator) guardedCycle(ctx context.Context) (CycleResult, error) {
	if ctx.Err() != nil {
		return CycleResult{}, ctx.Err()
	}

	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CycleTimeout)
	defer cancel()
	stopGrace := context.AfterFunc(ctx, func() {
		o.setState(StateStopping)
		timer := time.NewTimer(o.cfg.ShutdownGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
			logging.Warn().Dur("grace", o.cfg.ShutdownGrace).Msg("Shutdown grace expired, cancelling cycle")
			cancel()
		case <-cycleCtx.Done():
		}
	})
	defer stopGrace()

	start := o.now()
	res, err := o.cycle(cycleCtx)
	res.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			metrics.RecordCycle("cancelled", res.Duration)
			logging.Warn().Err(err).Str("cycle_id", res.ID).Msg("Cycle interrupted by shutdown")
			return res, ctx.Err()
		}
		if errors.Is(cycleCtx.Err(), context.DeadlineExceeded) {
			logging.Warn().
				Str("cycle_id", res.ID).
				Dur("timeout", o.cfg.CycleTimeout).
				Msg("Cycle timed out")
		}
		metrics.RecordCycle("failure", res.Duration)
		return res, o.recordFailure(cycleCtx, res.ID, err)
	}

	result := "success"
	if !res.Changed {
		result = "unchanged"
	}
	metrics.RecordCycle(result, res.Duration)
	o.recordSuccess(cycleCtx)
	return res, nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context) {
	o.mu.Lock()
	previous := o.health.ConsecutiveFailures
	o.health.ConsecutiveFailures = 0
	o.health.LastSuccess = o.now()
	o.health.LastError = ""
	o.health.CyclesRun++
	o.mu.Unlock()

	metrics.ConsecutiveFailures.Set(0)
	if o.State().Ready() {
		o.setState(StateRunning)
	}
	if previous > 0 {
		logging.Info().Int("previous_failures", previous).Msg("Pipeline recovered")
		o.alert(ctx, fmt.Sprintf("Reservation sync recovered after %d consecutive failures", previous))
	}
}

// alert sends text with its own deadline; the caller's context may already be spent.
func (o *Orchestrator) alert(ctx context.Context, text string) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ShutdownGrace)
	defer cancel()
	if err := o.deps.Notifier.Send(notifyCtx, text); err != nil {
		logging.Warn().Err(err).Msg("Notification not delivered")
	}
}

// recordFailure bumps the failure streak, notifies operators at most once per
// FailureNotifyInterval and returns ErrFailureCeiling once the streak hits the ceiling.
func (o *Orchestrator) recordFailure(ctx context.Context, cycleID string, cause error) error {
	o.mu.Lock()
	o.health.ConsecutiveFailures++
	o.health.LastFailure = o.now()
	o.health.LastError = cause.Error()
	o.health.CyclesRun++
	failures := o.health.ConsecutiveFailures
	o.mu.Unlock()

	metrics.ConsecutiveFailures.Set(float64(failures))
	if o.State().Ready() {
		o.setState(StateDegraded)
	}

	logging.Error().
		Err(cause).
		Str("cycle_id", cycleID).
		Int("consecutive_failures", failures).
		Msg("Pipeline cycle failed")

	o.failureNotice.Do(func() {
		o.alert(ctx, fmt.Sprintf("Reservation sync failing (%d consecutive): %v", failures, cause))
	})

	if failures >= o.cfg.FailureCeiling {
		o.setState(StateDegraded)
		o.alert(ctx, fmt.Sprintf("CRITICAL: reservation sync stopping after %d consecutive failures, last error: %v", failures, cause))
		return fmt.Errorf("%w (%d): %w", ErrFailureCeiling, failures, cause)
	}
	return cause
}

func (o *Orchestrator) checkHealth(ctx context.Context) {
	if o.State().Ready() {
		o.setState(StateHealthCheck)
		defer o.settle()
	}

	report := o.deps.Health.CheckAll(ctx)

	o.mu.Lock()
	o.health.LastHealthCheck = report.Timestamp
	o.lastReport = report
	o.mu.Unlock()

	if !report.Healthy {
		logging.Warn().Strs("failed", report.Failed()).Msg("Health check failed")
		if critical := report.CriticalFailed(); len(critical) > 0 {
			o.alert(ctx, "Reservation sync health check failed: "+strings.Join(critical, ", "))
		}
		return
	}
	logging.Debug().Int("components", len(report.Components)).Msg("Health check passed")
}

// stop persists fingerprints and releases resources after the loop exits.
func (o *Orchestrator) stop() {
	o.setState(StateStopping)
	if err := o.Close(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Pipeline shutdown incomplete")
	}
	o.setState(StateStopped)
	logging.Info().Msg("Pipeline stopped")
}

// Close persists fingerprints, clears the cache and closes the store. It is
// safe to call more than once.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.releaseOnce.Do(func() {
		var errs []error
		if err := o.deps.Detector.Persist(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := o.deps.Detector.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release fingerprints: %w", err))
		}
		if o.deps.Store != nil {
			if err := o.deps.Store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}
		o.releaseErr = errors.Join(errs...)
	})
	return o.releaseErr
}
