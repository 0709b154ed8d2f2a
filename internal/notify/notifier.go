// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package notify

import (
	"context"

	"github.com/tomtom215/reservesync/internal/config"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/retry"
)

// Notifier delivers operator messages.
type Notifier interface {
	// Name identifies the notifier in logs.
	Name() string
	Send(ctx context.Context, text string) error
}

// New returns a WebhookNotifier when a webhook is configured and a
// NopNotifier otherwise.
func New(cfg config.NotifyConfig, policy retry.Policy) Notifier {
	if !cfg.Enabled() {
		return NopNotifier{}
	}
	return NewWebhookNotifier(WebhookConfig{
		WebhookURL:   cfg.WebhookURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Timeout:      cfg.Timeout,
		MinInterval:  cfg.MinInterval,
		Retry:        policy,
	})
}

// NopNotifier drops messages. It is used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Name() string { return "nop" }

func (NopNotifier) Send(ctx context.Context, text string) error {
	logging.Ctx(ctx).Debug().Int("length", len(text)).Msg("Notification suppressed, no webhook configured")
	return nil
}
