// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reservesync/config.yaml",
	"/etc/reservesync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Workbook: WorkbookConfig{
			BasePath:          "",
			Pattern:           "**/*.xlsx",
			SheetName:         "Reservations",
			DateColumn:        "A",
			CountColumn:       "", // adjacent to DateColumn
			HeaderRows:        1,
			LockTimeout:       2 * time.Second,
			DetectConcurrency: 4,
			Watch:             false,
			WatchDebounce:     2 * time.Second,
		},
		Facilities: FacilitiesConfig{
			TenantID: 1,
		},
		Store: StoreConfig{
			Kind:            "rest",
			Table:           "monthly_reservations",
			MaxConns:        4,
			BatchSize:       50,
			Timeout:         30 * time.Second,
			DetectDeletions: false,
			BreakerFailures: 5,
			BreakerTimeout:  60 * time.Second,
		},
		Notify: NotifyConfig{
			Timeout:     30 * time.Second,
			MinInterval: 500 * time.Millisecond,
		},
		Report: ReportConfig{
			Dir:           "./reports",
			RetentionDays: 30,
			PurgeInterval: 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			Interval:              5 * time.Minute,
			CycleTimeout:          4 * time.Minute,
			HealthInterval:        time.Hour,
			MinFreeDiskMB:         100,
			FailureNotifyInterval: 10 * time.Minute,
			FailureCeiling:        10,
			ShutdownGrace:         20 * time.Second,
		},
		Cache: CacheConfig{
			TTL:           24 * time.Hour,
			MaxEntries:    10000,
			SweepInterval: 5 * time.Minute,
			SnapshotDir:   "",
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":9464",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Built-in defaults
//  2. Config file (config.yaml, CONFIG_PATH)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processFacilityMap(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"notify.scopes",
}

// processSliceFields converts comma-separated strings from env vars into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		if parts := splitList(strVal); len(parts) > 0 {
			if err := k.Set(path, parts); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// processFacilityMap expands FACILITY_MAP ("Aoba=7,Midori=8") into the
// ordered mapping list. YAML lists are left untouched.
func processFacilityMap(k *koanf.Koanf) error {
	raw, ok := k.Get("facilities.map").(string)
	if !ok {
		return nil
	}
	mappings, err := ParseFacilityMap(raw)
	if err != nil {
		return fmt.Errorf("FACILITY_MAP: %w", err)
	}
	list := make([]interface{}, 0, len(mappings))
	for _, m := range mappings {
		list = append(list, map[string]interface{}{"match": m.Match, "id": m.ID})
	}
	if err := k.Set("facilities.map", list); err != nil {
		return fmt.Errorf("failed to set facilities.map: %w", err)
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Workbook source
	"workbook_base_path":          "workbook.base_path",
	"workbook_pattern":            "workbook.pattern",
	"workbook_sheet_name":         "workbook.sheet_name",
	"workbook_date_column":        "workbook.date_column",
	"workbook_count_column":       "workbook.count_column",
	"workbook_header_rows":        "workbook.header_rows",
	"workbook_lock_timeout":       "workbook.lock_timeout",
	"workbook_detect_concurrency": "workbook.detect_concurrency",
	"workbook_watch":              "workbook.watch",
	"workbook_watch_debounce":     "workbook.watch_debounce",

	// Facilities
	"facility_map": "facilities.map",
	"tenant_id":    "facilities.tenant_id",

	// Remote store
	"store_kind":             "store.kind",
	"store_url":              "store.url",
	"store_api_key":          "store.api_key",
	"store_dsn":              "store.dsn",
	"store_max_conns":        "store.max_conns",
	"store_table":            "store.table",
	"store_batch_size":       "store.batch_size",
	"store_timeout":          "store.timeout",
	"store_detect_deletions": "store.detect_deletions",
	"store_breaker_failures": "store.breaker_failures",
	"store_breaker_timeout":  "store.breaker_timeout",

	// Notifications
	"notify_webhook_url":   "notify.webhook_url",
	"notify_token_url":     "notify.token_url",
	"notify_client_id":     "notify.client_id",
	"notify_client_secret": "notify.client_secret",
	"notify_scopes":        "notify.scopes",
	"notify_timeout":       "notify.timeout",
	"notify_min_interval":  "notify.min_interval",

	// Reports
	"report_dir":            "report.dir",
	"report_retention_days": "report.retention_days",
	"report_purge_interval": "report.purge_interval",

	// Pipeline
	"pipeline_interval":                "pipeline.interval",
	"pipeline_cycle_timeout":           "pipeline.cycle_timeout",
	"pipeline_health_interval":         "pipeline.health_interval",
	"pipeline_min_free_disk_mb":        "pipeline.min_free_disk_mb",
	"pipeline_failure_notify_interval": "pipeline.failure_notify_interval",
	"pipeline_failure_ceiling":         "pipeline.failure_ceiling",
	"pipeline_shutdown_grace":          "pipeline.shutdown_grace",

	// Fingerprint cache
	"cache_ttl":            "cache.ttl",
	"cache_max_entries":    "cache.max_entries",
	"cache_sweep_interval": "cache.sweep_interval",
	"cache_snapshot_dir":   "cache.snapshot_dir",

	// Retry
	"retry_max_retries":   "retry.max_retries",
	"retry_initial_delay": "retry.initial_delay",
	"retry_max_delay":     "retry.max_delay",

	// HTTP server
	"http_enabled": "server.enabled",
	"http_addr":    "server.addr",
	"http_timeout": "server.timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - WORKBOOK_BASE_PATH -> workbook.base_path
//   - STORE_API_KEY -> store.api_key
//   - HTTP_ADDR -> server.addr
//
// Variables without a mapping are ignored.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
