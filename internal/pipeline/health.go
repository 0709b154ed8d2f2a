// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/reservesync/internal/config"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/store"
)

// HealthStatus is the aggregated health verdict.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Check probes one dependency. A nil error means healthy. A failing critical
// check alerts operators.
type Check struct {
	Name     string
	Critical bool
	Fn       func(ctx context.Context) error
}

// ComponentHealth is the result of one Check.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Critical  bool      `json:"critical,omitempty"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// HealthReport aggregates every component result.
type HealthReport struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// Failed returns the names of unhealthy components.
func (r HealthReport) Failed() []string {
	var names []string
	for name, c := range r.Components {
		if !c.Healthy {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// CriticalFailed returns the names of unhealthy critical components.
func (r HealthReport) CriticalFailed() []string {
	var names []string
	for name, c := range r.Components {
		if c.Critical && !c.Healthy {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// HealthChecker runs a fixed set of checks concurrently, each bounded by timeout.
type HealthChecker struct {
	checks  []Check
	timeout time.Duration
}

// NewHealthChecker creates a checker. A timeout <= 0 uses 10s.
func NewHealthChecker(timeout time.Duration, checks ...Check) *HealthChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{checks: checks, timeout: timeout}
}

// CheckAll runs every check and records the results as metrics.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthReport {
	report := HealthReport{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth, len(h.checks)),
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, check := range h.checks {
		g.Go(func() error {
			result := h.run(ctx, check)
			metrics.SetHealth(check.Name, result.Healthy)

			mu.Lock()
			defer mu.Unlock()
			report.Components[check.Name] = result
			if !result.Healthy {
				report.Healthy = false
				report.Status = HealthStatusUnhealthy
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (h *HealthChecker) run(ctx context.Context, check Check) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- check.Fn(checkCtx)
	}()

	var err error
	select {
	case err = <-resultCh:
	case <-checkCtx.Done():
		err = errors.New("health check timeout")
	}

	result := ComponentHealth{Name: check.Name, Healthy: err == nil, Critical: check.Critical, LastCheck: time.Now()}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// DiskSpaceCheck fails when the volume holding path has less than minFreeMB free.
func DiskSpaceCheck(path string, minFreeMB uint64) Check {
	return Check{Name: "disk_space", Fn: func(ctx context.Context) error {
		usage, err := disk.UsageWithContext(ctx, existingAncestor(path))
		if err != nil {
			return fmt.Errorf("disk usage of %s: %w", path, err)
		}
		freeMB := usage.Free / (1024 * 1024)
		if freeMB < minFreeMB {
			return fmt.Errorf("%d MB free on %s, need %d MB", freeMB, path, minFreeMB)
		}
		return nil
	}}
}

// existingAncestor returns path or its nearest existing parent, so free space
// can be measured before the directory is first created.
func existingAncestor(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// DirectoryCheck fails when path is not a reachable directory.
func DirectoryCheck(name, path string) Check {
	return Check{Name: name, Critical: true, Fn: func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}}
}

// WritableDirCheck fails when a file cannot be created in dir.
func WritableDirCheck(name, dir string) Check {
	return Check{Name: name, Fn: func(context.Context) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".healthcheck-*")
		if err != nil {
			return err
		}
		_ = f.Close()
		return os.Remove(f.Name())
	}}
}

// StoreCheck verifies credentials are configured and the store answers a ping.
func StoreCheck(cfg config.StoreConfig, st store.Store) Check {
	return Check{Name: "store", Critical: true, Fn: func(ctx context.Context) error {
		switch cfg.Kind {
		case store.KindREST:
			if cfg.URL == "" || cfg.APIKey == "" {
				return errors.New("STORE_URL and STORE_API_KEY must be set")
			}
		case store.KindPostgres:
			if cfg.DSN == "" {
				return errors.New("STORE_DSN must be set")
			}
		}
		if st == nil {
			return errors.New("store not connected")
		}
		return st.Ping(ctx)
	}}
}

// NotifyCredentialsCheck fails when a webhook is configured without OAuth2 credentials.
func NotifyCredentialsCheck(cfg config.NotifyConfig) Check {
	return Check{Name: "notify", Fn: func(context.Context) error {
		if !cfg.Enabled() {
			return nil
		}
		if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return errors.New("webhook configured without client credentials")
		}
		return nil
	}}
}

// DefaultChecks returns the standard check set for cfg.
func DefaultChecks(cfg *config.Config, st store.Store) []Check {
	return []Check{
		DiskSpaceCheck(cfg.Report.Dir, cfg.Pipeline.MinFreeDiskMB),
		DirectoryCheck("base_path", cfg.Workbook.BasePath),
		StoreCheck(cfg.Store, st),
		NotifyCredentialsCheck(cfg.Notify),
		WritableDirCheck("report_dir", cfg.Report.Dir),
	}
}
