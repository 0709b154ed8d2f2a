// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateWorkbook(); err != nil {
		return err
	}

	if err := c.validateFacilities(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateNotify(); err != nil {
		return err
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}

	if err := c.validateRetry(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	// Struct tags catch ranges and formats the checks above do not name.
	return validation.ValidateStruct(c)
}

func (c *Config) validateWorkbook() error {
	if c.Workbook.BasePath == "" {
		return fmt.Errorf("WORKBOOK_BASE_PATH is required")
	}
	if !doublestar.ValidatePattern(c.Workbook.Pattern) {
		return fmt.Errorf("WORKBOOK_PATTERN %q is not a valid glob", c.Workbook.Pattern)
	}
	if c.Workbook.CountColumn != "" && strings.EqualFold(c.Workbook.CountColumn, c.Workbook.DateColumn) {
		return fmt.Errorf("WORKBOOK_COUNT_COLUMN must differ from WORKBOOK_DATE_COLUMN")
	}
	return nil
}

func (c *Config) validateFacilities() error {
	if c.Facilities.TenantID <= 0 {
		return fmt.Errorf("TENANT_ID must be positive, got: %d", c.Facilities.TenantID)
	}
	if len(c.Facilities.Map) == 0 {
		return fmt.Errorf("FACILITY_MAP requires at least one substring=id entry")
	}
	seen := make(map[string]struct{}, len(c.Facilities.Map))
	for _, m := range c.Facilities.Map {
		if m.Match == "" {
			return fmt.Errorf("FACILITY_MAP contains an empty substring")
		}
		if _, dup := seen[m.Match]; dup {
			return fmt.Errorf("FACILITY_MAP contains duplicate substring %q", m.Match)
		}
		seen[m.Match] = struct{}{}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Kind {
	case "rest":
		if c.Store.URL == "" {
			return fmt.Errorf("STORE_URL is required when STORE_KIND=rest")
		}
		if err := validateHTTPURL(c.Store.URL, "STORE_URL"); err != nil {
			return fmt.Errorf("STORE_URL is invalid: %w", err)
		}
		if c.Store.APIKey == "" {
			return fmt.Errorf("STORE_API_KEY is required when STORE_KIND=rest")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN is required when STORE_KIND=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_KIND must be rest, postgres or memory, got: %s", c.Store.Kind)
	}
	if c.Store.BatchSize <= 0 {
		return fmt.Errorf("STORE_BATCH_SIZE must be positive, got: %d", c.Store.BatchSize)
	}
	return nil
}

// validateNotify requires the OAuth2 client credentials whenever a webhook is set.
func (c *Config) validateNotify() error {
	n := c.Notify
	if !n.Enabled() {
		return nil
	}
	if err := validateEndpointURL(n.WebhookURL, "NOTIFY_WEBHOOK_URL"); err != nil {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL is invalid: %w", err)
	}
	if n.TokenURL == "" || n.ClientID == "" || n.ClientSecret == "" {
		return fmt.Errorf("NOTIFY_TOKEN_URL, NOTIFY_CLIENT_ID and NOTIFY_CLIENT_SECRET are required when NOTIFY_WEBHOOK_URL is set")
	}
	if err := validateEndpointURL(n.TokenURL, "NOTIFY_TOKEN_URL"); err != nil {
		return fmt.Errorf("NOTIFY_TOKEN_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.Interval <= 0 {
		return fmt.Errorf("PIPELINE_INTERVAL must be positive, got: %s", p.Interval)
	}
	if p.CycleTimeout <= 0 || p.CycleTimeout > p.Interval {
		return fmt.Errorf("PIPELINE_CYCLE_TIMEOUT must be positive and not exceed PIPELINE_INTERVAL (%s), got: %s", p.Interval, p.CycleTimeout)
	}
	if p.FailureCeiling < 1 {
		return fmt.Errorf("PIPELINE_FAILURE_CEILING must be at least 1, got: %d", p.FailureCeiling)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("RETRY_MAX_DELAY (%s) must not be below RETRY_INITIAL_DELAY (%s)", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}
	return nil
}
