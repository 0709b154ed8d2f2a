// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package notify delivers operator messages to a chat webhook.

WebhookNotifier posts {"text": ...} to the configured URL with a bearer token
obtained through the OAuth2 client-credentials grant. Tokens are cached and
refreshed five minutes before expiry. Sends are spaced by a minimum interval
and transient failures (5xx, 429, network errors) are retried.

When no webhook URL is configured, New returns a NopNotifier so callers never
need to check.
*/
package notify
