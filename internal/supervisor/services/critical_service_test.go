// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var errCeiling = errors.New("ceiling reached")

type scriptedService struct {
	err   error
	block bool
}

func (s scriptedService) Serve(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestCriticalService_Serve(t *testing.T) {
	transient := errors.New("watch failed")

	tests := []struct {
		name          string
		err           error
		wantTerminate bool
		wantCause     error
	}{
		{"fatal sentinel", errCeiling, true, errCeiling},
		{"wrapped fatal sentinel", fmt.Errorf("cycle 12: %w", errCeiling), true, errCeiling},
		{"transient error restarts", transient, false, nil},
		{"clean exit terminates", nil, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCriticalService(scriptedService{err: tt.err}, "pipeline", errCeiling)

			err := svc.Serve(context.Background())

			if got := errors.Is(err, suture.ErrTerminateSupervisorTree); got != tt.wantTerminate {
				t.Fatalf("terminate = %v (err %v), want %v", got, err, tt.wantTerminate)
			}
			if !tt.wantTerminate {
				if !errors.Is(err, tt.err) {
					t.Errorf("err = %v, want %v", err, tt.err)
				}
				if svc.Cause() != nil {
					t.Errorf("Cause() = %v, want nil", svc.Cause())
				}
				return
			}
			cause := svc.Cause()
			if cause == nil {
				t.Fatal("Cause() = nil after termination")
			}
			if tt.wantCause != nil && !errors.Is(cause, tt.wantCause) {
				t.Errorf("Cause() = %v, want %v", cause, tt.wantCause)
			}
		})
	}
}

func TestCriticalService_CancelledIsNotFatal(t *testing.T) {
	svc := NewCriticalService(scriptedService{block: true}, "pipeline", errCeiling)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Serve(ctx)
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Fatal("cancellation should not terminate the tree")
	}
	if svc.Cause() != nil {
		t.Errorf("Cause() = %v, want nil", svc.Cause())
	}
}

func TestCriticalService_StopsSupervisor(t *testing.T) {
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	svc := NewCriticalService(scriptedService{err: errCeiling}, "pipeline", errCeiling)
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	select {
	case <-sup.ServeBackground(ctx):
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	if ctx.Err() != nil {
		t.Fatal("supervisor stopped by timeout, not by the critical service")
	}
	if !errors.Is(svc.Cause(), errCeiling) {
		t.Errorf("Cause() = %v, want %v", svc.Cause(), errCeiling)
	}
}
