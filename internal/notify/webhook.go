// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/retry"
)

// tokenRefreshSkew refreshes bearer tokens this long before they expire.
const tokenRefreshSkew = 5 * time.Minute

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	WebhookURL   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
	MinInterval  time.Duration
	Retry        retry.Policy
}

// WebhookPayload is the JSON body posted to the webhook.
type WebhookPayload struct {
	Text string `json:"text"`
}

// WebhookError is a non-2xx webhook response.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// WebhookNotifier posts messages to a chat webhook authorized by an OAuth2
// client-credentials bearer token.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	oauth      *clientcredentials.Config
	limiter    *rate.Limiter
	retry      retry.Policy

	mu    sync.Mutex
	token *oauth2.Token
	now   func() time.Time
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 500 * time.Millisecond
	}

	client := &http.Client{Timeout: timeout}

	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		client:     client,
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		retry:   cfg.Retry,
		now:     time.Now,
	}
}

// bearerToken returns the cached token, exchanging client credentials under
// ctx when none is cached or the cached one expires within tokenRefreshSkew.
// Tokens without an expiry are reused indefinitely.
func (n *WebhookNotifier) bearerToken(ctx context.Context) (*oauth2.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.token != nil && (n.token.Expiry.IsZero() || n.token.Expiry.After(n.now().Add(tokenRefreshSkew))) {
		return n.token, nil
	}

	tok, err := n.oauth.Token(context.WithValue(ctx, oauth2.HTTPClient, n.client))
	if err != nil {
		return nil, err
	}
	n.token = tok
	return tok, nil
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts text to the webhook. Consecutive sends are spaced by the
// configured minimum interval.
func (n *WebhookNotifier) Send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(WebhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	err = retry.Do(ctx, "notify webhook", n.retry, func(ctx context.Context) error {
		return n.post(ctx, body)
	})
	metrics.RecordNotification(err)
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Debug().Int("length", len(text)).Msg("Notification sent")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	token, err := n.bearerToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain webhook token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		werr := &WebhookError{StatusCode: resp.StatusCode, Body: string(snippet)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(werr)
		}
		return werr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
