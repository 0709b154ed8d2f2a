// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package services_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/reservesync/internal/api"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/pipeline"
	"github.com/tomtom215/reservesync/internal/supervisor/services"
)

var _ suture.Service = (*services.HealthServer)(nil)

type runningPipeline struct {
	triggers atomic.Int32
}

func (p *runningPipeline) State() pipeline.State                   { return pipeline.StateRunning }
func (p *runningPipeline) Health() models.PipelineHealth           { return models.PipelineHealth{} }
func (p *runningPipeline) LastHealthReport() pipeline.HealthReport { return pipeline.HealthReport{} }
func (p *runningPipeline) Trigger()                                { p.triggers.Add(1) }

// startHealthServer runs srv on a kernel-picked loopback port and returns
// its base URL together with the channel Serve reports on.
func startHealthServer(t *testing.T, ctx context.Context, srv *services.HealthServer) (string, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-srv.Bound():
	case err := <-done:
		t.Fatalf("Serve() returned before binding: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("health server did not bind")
	}
	return "http://" + srv.Addr().String(), done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return")
		return nil
	}
}

func TestHealthServer_ServesRouter(t *testing.T) {
	status := &runningPipeline{}
	router := api.NewRouter(status, api.RouterConfig{})
	srv := services.NewHealthServer(&http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           router.Handler(),
		ReadHeaderTimeout: time.Second,
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base, done := startHealthServer(t, ctx, srv)

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var body struct {
		Status string `json:"status"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || decodeErr != nil || body.Status != "alive" {
		t.Errorf("GET /healthz = %d %q (decode err %v), want 200 alive", resp.StatusCode, body.Status, decodeErr)
	}

	resp, err = http.Post(base+"/api/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/v1/sync: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /api/v1/sync = %d, want 202", resp.StatusCode)
	}
	if status.triggers.Load() != 1 {
		t.Errorf("triggers = %d, want 1", status.triggers.Load())
	}

	cancel()
	if err := waitServe(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	fresh := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	if _, err := fresh.Get(base + "/healthz"); err == nil {
		t.Error("server still accepting connections after shutdown")
	}
}

func TestHealthServer_PortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	srv := services.NewHealthServer(&http.Server{Addr: occupied.Addr().String(), Handler: http.NotFoundHandler()}, time.Second)

	err = srv.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), occupied.Addr().String()) {
		t.Fatalf("Serve() = %v, want listen error naming %s", err, occupied.Addr())
	}
	if srv.Addr() != nil {
		t.Errorf("Addr() = %v after failed bind, want nil", srv.Addr())
	}
	select {
	case <-srv.Bound():
		t.Error("Bound() closed although the listener never bound")
	default:
	}
}

func TestHealthServer_Drain(t *testing.T) {
	tests := []struct {
		name         string
		drainTimeout time.Duration
		hold         time.Duration
		wantErr      error
		wantStatus   int
	}{
		{"in-flight request completes", time.Second, 50 * time.Millisecond, context.Canceled, http.StatusOK},
		{"stuck request hits drain timeout", 30 * time.Millisecond, time.Second, context.DeadlineExceeded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entered := make(chan struct{})
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(entered)
				select {
				case <-time.After(tt.hold):
				case <-r.Context().Done():
					return
				}
				w.WriteHeader(http.StatusOK)
			})
			srv := services.NewHealthServer(&http.Server{Addr: "127.0.0.1:0", Handler: handler}, tt.drainTimeout)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			base, done := startHealthServer(t, ctx, srv)

			got := make(chan int, 1)
			go func() {
				resp, err := http.Get(base + "/metrics")
				if err != nil {
					got <- 0
					return
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				got <- resp.StatusCode
			}()

			<-entered
			cancel()

			if err := waitServe(t, done); !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() = %v, want %v", err, tt.wantErr)
			}
			if code := <-got; code != tt.wantStatus {
				t.Errorf("in-flight status = %d, want %d", code, tt.wantStatus)
			}
		})
	}
}

func TestNewHealthServer_Defaults(t *testing.T) {
	srv := services.NewHealthServer(&http.Server{}, 0)
	if srv.String() != "health-server" {
		t.Errorf("String() = %q, want health-server", srv.String())
	}
	if srv.Addr() != nil {
		t.Errorf("Addr() = %v before Serve, want nil", srv.Addr())
	}
}

func TestHealthServer_UnderSupervisor(t *testing.T) {
	srv := services.NewHealthServer(&http.Server{
		Addr:    "127.0.0.1:0",
		Handler: api.NewRouter(&runningPipeline{}, api.RouterConfig{}).Handler(),
	}, time.Second)

	sup := suture.New("api-layer", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          2 * time.Second,
	})
	sup.Add(srv)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	select {
	case <-srv.Bound():
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("health server did not bind under the supervisor")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/readyz")
	if err != nil {
		cancel()
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
