// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB)
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// HTTPError is a non-2xx response from the REST endpoint.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Transient reports whether retrying could succeed.
func (e *HTTPError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// RESTConfig configures a RESTStore.
type RESTConfig struct {
	BaseURL         string
	APIKey          string
	Table           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// RESTStore talks to a PostgREST-style HTTPS endpoint (for example Supabase).
// Columns: tenant_id, facility_id, year, month, reservation_counts (text[]), updated_at.
type RESTStore struct {
	cfg     RESTConfig
	client  *http.Client
	breaker *breaker
	now     func() time.Time
}

type restRow struct {
	TenantID          int        `json:"tenant_id"`
	FacilityID        int        `json:"facility_id"`
	Year              int        `json:"year"`
	Month             int        `json:"month"`
	ReservationCounts []string   `json:"reservation_counts"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func (r restRow) key() models.RecordKey {
	return models.RecordKey{TenantID: r.TenantID, FacilityID: r.FacilityID, Year: r.Year, Month: time.Month(r.Month)}
}

// NewRESTStore creates a REST-backed store.
func NewRESTStore(cfg RESTConfig) *RESTStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Table == "" {
		cfg.Table = "monthly_reservations"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &RESTStore{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("store-rest", cfg.BreakerFailures, cfg.BreakerTimeout),
		now:     time.Now,
	}
}

func (s *RESTStore) endpoint() string {
	return s.cfg.BaseURL + "/rest/v1/" + url.PathEscape(s.cfg.Table)
}

// do sends a request through the circuit breaker and decodes a JSON response
// into out when out is non-nil.
func (s *RESTStore) do(ctx context.Context, operation, method string, query url.Values, body, out any) error {
	start := time.Now()

	_, err := s.breaker.execute(func() (any, error) {
		return nil, s.roundTrip(ctx, method, query, body, out)
	})

	metrics.RecordStoreOperation(KindREST, operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("store %s: %w", operation, err)
	}
	return nil
}

func (s *RESTStore) roundTrip(ctx context.Context, method string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	target := s.endpoint()
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		prefer := "return=minimal"
		if method == http.MethodPost {
			prefer += ",resolution=merge-duplicates"
		}
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(readBodyForError(resp.Body)),
		}
		if httpErr.Transient() {
			return httpErr
		}
		return retry.Permanent(httpErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// keyFilter renders one key as a PostgREST and() group.
func keyFilter(k models.RecordKey) string {
	return fmt.Sprintf("and(tenant_id.eq.%d,facility_id.eq.%d,year.eq.%d,month.eq.%d)",
		k.TenantID, k.FacilityID, k.Year, int(k.Month))
}

func keyQuery(k models.RecordKey) url.Values {
	return url.Values{
		"tenant_id":   {"eq." + strconv.Itoa(k.TenantID)},
		"facility_id": {"eq." + strconv.Itoa(k.FacilityID)},
		"year":        {"eq." + strconv.Itoa(k.Year)},
		"month":       {"eq." + strconv.Itoa(int(k.Month))},
	}
}

// Fetch issues one GET for the whole batch using an or() filter.
func (s *RESTStore) Fetch(ctx context.Context, keys []models.RecordKey) (map[models.RecordKey]Row, error) {
	out := make(map[models.RecordKey]Row, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	filters := make([]string, len(keys))
	for i, k := range keys {
		filters[i] = keyFilter(k)
	}
	query := url.Values{
		"select": {"tenant_id,facility_id,year,month,reservation_counts,updated_at"},
		"or":     {"(" + strings.Join(filters, ",") + ")"},
	}

	var rows []restRow
	if err := s.do(ctx, "fetch", http.MethodGet, query, nil, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		row := Row{Key: r.key(), ReservationCounts: r.ReservationCounts}
		if r.UpdatedAt != nil {
			row.UpdatedAt = *r.UpdatedAt
		}
		out[row.Key] = row
	}
	return out, nil
}

func (s *RESTStore) Insert(ctx context.Context, rec models.MonthlyReservationRecord) error {
	now := s.now().UTC()
	body := restRow{
		TenantID:          rec.Key.TenantID,
		FacilityID:        rec.Key.FacilityID,
		Year:              rec.Key.Year,
		Month:             int(rec.Key.Month),
		ReservationCounts: rec.ReservationCounts,
		UpdatedAt:         &now,
	}
	query := url.Values{"on_conflict": {"tenant_id,facility_id,year,month"}}
	return s.do(ctx, "insert", http.MethodPost, query, body, nil)
}

func (s *RESTStore) Update(ctx context.Context, rec models.MonthlyReservationRecord) error {
	body := map[string]any{
		"reservation_counts": rec.ReservationCounts,
		"updated_at":         s.now().UTC(),
	}
	return s.do(ctx, "update", http.MethodPatch, keyQuery(rec.Key), body, nil)
}

func (s *RESTStore) ListFacilityYear(ctx context.Context, tenantID, facilityID, year int) ([]models.RecordKey, error) {
	query := url.Values{
		"select":      {"tenant_id,facility_id,year,month"},
		"tenant_id":   {"eq." + strconv.Itoa(tenantID)},
		"facility_id": {"eq." + strconv.Itoa(facilityID)},
		"year":        {"eq." + strconv.Itoa(year)},
		"order":       {"month.asc"},
	}
	var rows []restRow
	if err := s.do(ctx, "list", http.MethodGet, query, nil, &rows); err != nil {
		return nil, err
	}
	keys := make([]models.RecordKey, len(rows))
	for i, r := range rows {
		keys[i] = r.key()
	}
	return keys, nil
}

// Ping verifies the endpoint and credentials with a one-row read.
func (s *RESTStore) Ping(ctx context.Context) error {
	query := url.Values{"select": {"tenant_id"}, "limit": {"1"}}
	var rows []restRow
	return s.do(ctx, "ping", http.MethodGet, query, nil, &rows)
}

func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
