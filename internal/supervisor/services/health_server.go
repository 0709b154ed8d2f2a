// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
)

// HealthServer serves the health, metrics and trigger router as a supervised
// service.
//
// The listener is bound inside Serve so a port conflict fails the service
// (and is retried with supervisor backoff) instead of being lost in a
// background goroutine. On cancellation in-flight probes and scrapes get
// drainTimeout to finish.
//
//	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router.Handler()}
//	tree.AddAPIService(services.NewHealthServer(srv, cfg.Server.Timeout))
type HealthServer struct {
	server       *http.Server
	drainTimeout time.Duration

	mu        sync.Mutex
	addr      net.Addr
	bound     chan struct{}
	boundOnce sync.Once
}

// NewHealthServer wraps server. A non-positive drainTimeout means 10s.
func NewHealthServer(server *http.Server, drainTimeout time.Duration) *HealthServer {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &HealthServer{
		server:       server,
		drainTimeout: drainTimeout,
		bound:        make(chan struct{}),
	}
}

// Bound is closed once the listener is accepting connections for the first
// time.
func (h *HealthServer) Bound() <-chan struct{} {
	return h.bound
}

// Addr returns the bound listen address, or nil before the first bind.
// With ":0" configured it reports the port the kernel picked.
func (h *HealthServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Serve implements suture.Service.
func (h *HealthServer) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("health server listen on %q: %w", h.server.Addr, err)
	}

	h.mu.Lock()
	h.addr = ln.Addr()
	h.mu.Unlock()
	h.boundOnce.Do(func() { close(h.bound) })
	logging.Info().Str("addr", ln.Addr().String()).Msg("Health server listening")

	served := make(chan error, 1)
	go func() {
		served <- h.server.Serve(ln)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server stopped: %w", err)

	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.drainTimeout)
		defer cancel()

		if err := h.server.Shutdown(drainCtx); err != nil {
			_ = h.server.Close()
			<-served
			return fmt.Errorf("health server drain: %w", err)
		}
		<-served
		logging.Debug().Msg("Health server drained")
		return ctx.Err()
	}
}

func (h *HealthServer) String() string {
	return "health-server"
}
