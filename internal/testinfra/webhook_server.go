// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// TokenPath and HookPath are the routes served by MockChatServer.
const (
	TokenPath = "/oauth/token"
	HookPath  = "/hooks/reservations"
)

// ChatCapture represents a captured webhook post.
type ChatCapture struct {
	Authorization string
	Text          string
}

// MockChatServer emulates a chat bot endpoint protected by OAuth2 client
// credentials. It issues bearer tokens and captures posted messages.
type MockChatServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []ChatCapture

	tokensIssued atomic.Int32

	// TokenTTL is the expires_in value returned with each token (default: 1h).
	TokenTTL time.Duration

	// HookStatus is the status returned for webhook posts (default: 200).
	HookStatus int
}

// NewMockChatServer starts a server and registers its shutdown with t.Cleanup.
func NewMockChatServer(t *testing.T) *MockChatServer {
	t.Helper()

	m := &MockChatServer{TokenTTL: time.Hour, HookStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := m.tokensIssued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + strconv.Itoa(int(n)),
			"token_type":   "Bearer",
			"expires_in":   int(m.TokenTTL.Seconds()),
		})
	})
	mux.HandleFunc(HookPath, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &payload)

		m.mu.Lock()
		m.captures = append(m.captures, ChatCapture{Authorization: r.Header.Get("Authorization"), Text: payload.Text})
		status := m.HookStatus
		m.mu.Unlock()

		w.WriteHeader(status)
	})

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

// TokenURL returns the OAuth2 token endpoint.
func (m *MockChatServer) TokenURL() string {
	return m.Server.URL + TokenPath
}

// HookURL returns the webhook endpoint.
func (m *MockChatServer) HookURL() string {
	return m.Server.URL + HookPath
}

// Captures returns all captured posts.
func (m *MockChatServer) Captures() []ChatCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatCapture(nil), m.captures...)
}

// TokensIssued returns how many tokens the server handed out.
func (m *MockChatServer) TokensIssued() int {
	return int(m.tokensIssued.Load())
}

// SetHookStatus changes the status returned for subsequent posts.
func (m *MockChatServer) SetHookStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HookStatus = status
}
