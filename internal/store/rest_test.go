// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
)

func newTestRESTStore(t *testing.T, handler http.HandlerFunc) *RESTStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTStore(RESTConfig{
		BaseURL:         srv.URL + "/",
		APIKey:          "service-key",
		Table:           "monthly_reservations",
		Timeout:         5 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  time.Hour,
	})
}

func TestRESTStore_FetchBuildsBatchQuery(t *testing.T) {
	var gotQuery capturedQuery
	s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rest/v1/monthly_reservations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "service-key" || r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		gotQuery = capturedQuery{or: r.URL.Query().Get("or"), sel: r.URL.Query().Get("select")}
		_, _ = io.WriteString(w, `[{"tenant_id":1,"facility_id":7,"year":2024,"month":1,"reservation_counts":["5","3"],"updated_at":"2024-02-01T10:00:00Z"}]`)
	})

	keys := []models.RecordKey{key(7, time.January), key(7, time.February)}
	rows, err := s.Fetch(context.Background(), keys)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	wantOr := "(and(tenant_id.eq.1,facility_id.eq.7,year.eq.2024,month.eq.1),and(tenant_id.eq.1,facility_id.eq.7,year.eq.2024,month.eq.2))"
	if gotQuery.or != wantOr {
		t.Errorf("or = %q, want %q", gotQuery.or, wantOr)
	}
	if !strings.Contains(gotQuery.sel, "reservation_counts") {
		t.Errorf("select = %q, want reservation_counts", gotQuery.sel)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[key(7, time.January)]
	if !models.CountsEqual(row.ReservationCounts, []string{"5", "3"}) || row.UpdatedAt.IsZero() {
		t.Errorf("row = %+v", row)
	}
}

type capturedQuery struct{ or, sel string }

func TestRESTStore_InsertAndUpdate(t *testing.T) {
	var (
		method string
		query  string
		body   map[string]any
	)
	s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		method, query = r.Method, r.URL.RawQuery
		body = map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !strings.HasPrefix(r.Header.Get("Prefer"), "return=minimal") {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		if r.Method == http.MethodPost && !strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
			t.Errorf("insert Prefer = %q, want merge-duplicates", r.Header.Get("Prefer"))
		}
		w.WriteHeader(http.StatusCreated)
	})
	rec := models.MonthlyReservationRecord{Key: key(7, time.January), ReservationCounts: []string{"5", "4"}}

	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if method != http.MethodPost || body["facility_id"] != float64(7) || body["month"] != float64(1) {
		t.Errorf("insert sent %s %v", method, body)
	}
	if !strings.Contains(query, "on_conflict=") {
		t.Errorf("insert query = %q, want on_conflict", query)
	}

	if err := s.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if method != http.MethodPatch {
		t.Errorf("update method = %s, want PATCH", method)
	}
	for _, want := range []string{"tenant_id=eq.1", "facility_id=eq.7", "year=eq.2024", "month=eq.1"} {
		if !strings.Contains(query, want) {
			t.Errorf("update query %q missing %s", query, want)
		}
	}
	counts, _ := body["reservation_counts"].([]any)
	if len(counts) != 2 || counts[1] != "4" {
		t.Errorf("update body counts = %v", body["reservation_counts"])
	}
}

func TestRESTStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantPermanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusConflict, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"nope"}`, tt.status)
			})
			err := s.Ping(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if retry.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, retry.IsPermanent(err), tt.wantPermanent)
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
				t.Errorf("error = %v, want *HTTPError with status %d", err, tt.status)
			}
		})
	}
}

func TestRESTStore_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Ping(ctx); err == nil {
			t.Fatal("expected failure")
		}
	}
	if s.breaker.state() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", s.breaker.state())
	}

	err := s.Ping(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3 (open circuit short-circuits)", calls.Load())
	}
}

func TestRESTStore_PermanentErrorsDoNotTrip(t *testing.T) {
	s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	for i := 0; i < 5; i++ {
		_ = s.Ping(context.Background())
	}
	if s.breaker.state() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed after client errors", s.breaker.state())
	}
}

func TestRESTStore_ListFacilityYear(t *testing.T) {
	s := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("facility_id") != "eq.7" || q.Get("year") != "eq.2024" || q.Get("order") != "month.asc" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `[{"tenant_id":1,"facility_id":7,"year":2024,"month":1},{"tenant_id":1,"facility_id":7,"year":2024,"month":4}]`)
	})

	keys, err := s.ListFacilityYear(context.Background(), 1, 7, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[1] != key(7, time.April) {
		t.Errorf("keys = %v", keys)
	}
}
