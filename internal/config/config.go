// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Workbook   WorkbookConfig   `koanf:"workbook"`
	Facilities FacilitiesConfig `koanf:"facilities"`
	Store      StoreConfig      `koanf:"store"`
	Notify     NotifyConfig     `koanf:"notify"`
	Report     ReportConfig     `koanf:"report"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Cache      CacheConfig      `koanf:"cache"`
	Retry      RetryConfig      `koanf:"retry"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// WorkbookConfig describes where workbooks live and how they are laid out.
type WorkbookConfig struct {
	// BasePath is the root directory scanned recursively for workbooks.
	BasePath string `koanf:"base_path" validate:"required"`

	// Pattern is a doublestar glob relative to BasePath.
	// Default: **/*.xlsx
	Pattern string `koanf:"pattern" validate:"required"`

	// SheetName is the worksheet read from each workbook. When absent the
	// first sheet is used and the match is logged as degraded.
	SheetName string `koanf:"sheet_name" validate:"required"`

	// DateColumn holds reservation dates. Default: A
	DateColumn string `koanf:"date_column" validate:"required,excelcol"`

	// CountColumn holds daily counts. Empty means the column right of DateColumn.
	CountColumn string `koanf:"count_column" validate:"omitempty,excelcol"`

	// HeaderRows is the number of leading rows skipped. Default: 1
	HeaderRows int `koanf:"header_rows" validate:"gte=0,lte=1000"`

	LockTimeout       time.Duration `koanf:"lock_timeout" validate:"gt=0"`
	DetectConcurrency int           `koanf:"detect_concurrency" validate:"gte=1,lte=64"`

	// Watch enables the fsnotify watcher that triggers early cycles.
	Watch         bool          `koanf:"watch"`
	WatchDebounce time.Duration `koanf:"watch_debounce" validate:"gte=0"`
}

// FacilityMapping maps a filename substring to a facility identifier.
type FacilityMapping struct {
	Match string `koanf:"match" validate:"required"`
	ID    int    `koanf:"id" validate:"gt=0"`
}

// FacilitiesConfig holds the filename-to-facility table.
// Mappings are evaluated in order; the first substring match wins.
type FacilitiesConfig struct {
	TenantID int               `koanf:"tenant_id" validate:"gt=0"`
	Map      []FacilityMapping `koanf:"map" validate:"dive"`
}

// StoreConfig selects and configures the remote store.
type StoreConfig struct {
	// Kind is rest, postgres or memory. Default: rest
	Kind string `koanf:"kind" validate:"oneof=rest postgres memory"`

	// URL and APIKey configure the PostgREST-style HTTPS endpoint (kind=rest).
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`

	// DSN configures the direct PostgreSQL connection (kind=postgres).
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns" validate:"gte=1,lte=100"`

	Table     string        `koanf:"table" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"gte=1,lte=1000"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`

	// DetectDeletions reports remote rows missing from the extraction as Deleted.
	// No remote delete is issued.
	DetectDeletions bool `koanf:"detect_deletions"`

	// Circuit breaker around the REST client.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// NotifyConfig configures the chat webhook. Leaving WebhookURL empty disables notifications.
type NotifyConfig struct {
	WebhookURL   string        `koanf:"webhook_url"`
	TokenURL     string        `koanf:"token_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Scopes       []string      `koanf:"scopes"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinInterval  time.Duration `koanf:"min_interval" validate:"gte=0"`
}

// Enabled reports whether a webhook is configured.
func (n NotifyConfig) Enabled() bool {
	return n.WebhookURL != ""
}

// ReportConfig controls the audit CSV output.
type ReportConfig struct {
	Dir           string        `koanf:"dir" validate:"required"`
	RetentionDays int           `koanf:"retention_days" validate:"gte=1"`
	PurgeInterval time.Duration `koanf:"purge_interval" validate:"gt=0"`
}

// PipelineConfig tunes the orchestration loop.
type PipelineConfig struct {
	Interval       time.Duration `koanf:"interval" validate:"gt=0"`
	CycleTimeout   time.Duration `koanf:"cycle_timeout" validate:"gt=0"`
	HealthInterval time.Duration `koanf:"health_interval" validate:"gt=0"`
	MinFreeDiskMB  uint64        `koanf:"min_free_disk_mb"`

	// FailureNotifyInterval rate-limits failure notifications.
	FailureNotifyInterval time.Duration `koanf:"failure_notify_interval" validate:"gt=0"`

	// FailureCeiling is the consecutive failure count that stops the process.
	FailureCeiling int `koanf:"failure_ceiling" validate:"gte=1"`

	ShutdownGrace time.Duration `koanf:"shutdown_grace" validate:"gt=0"`
}

// CacheConfig tunes the fingerprint cache.
type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxEntries    int           `koanf:"max_entries" validate:"gte=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`

	// SnapshotDir persists fingerprints across restarts (BadgerDB). Empty disables.
	SnapshotDir string `koanf:"snapshot_dir"`
}

// RetryConfig bounds transient-failure retries (enumeration, store lookups).
type RetryConfig struct {
	MaxRetries   int           `koanf:"max_retries" validate:"gte=0,lte=20"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `koanf:"max_delay" validate:"gt=0"`
}

// ServerConfig configures the health and metrics HTTP server.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Addr    string        `koanf:"addr"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// FacilityID returns the identifier of the first mapping whose substring
// occurs in name, or false when nothing matches.
func (f FacilitiesConfig) FacilityID(name string) (int, bool) {
	for _, m := range f.Map {
		if m.Match != "" && strings.Contains(name, m.Match) {
			return m.ID, true
		}
	}
	return 0, false
}
