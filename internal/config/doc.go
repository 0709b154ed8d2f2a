// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package config provides centralized configuration management for ReserveSync.

Configuration is layered with Koanf:
  - Built-in defaults (defaultConfig)
  - YAML file (config.yaml, /etc/reservesync/config.yaml, or CONFIG_PATH)
  - Environment variables (highest priority)

# Configuration Structure

  - WorkbookConfig: share root, glob pattern, sheet and column layout
  - FacilitiesConfig: tenant and ordered filename-to-facility mappings
  - StoreConfig: remote store backend (rest, postgres, memory) and batching
  - NotifyConfig: chat webhook with OAuth2 client credentials
  - ReportConfig: audit CSV directory and retention
  - PipelineConfig: cycle interval, timeouts, failure ceiling
  - CacheConfig / RetryConfig: fingerprint cache and retry policy
  - ServerConfig / LoggingConfig: health endpoint and zerolog output

# Environment Variables

Required:
  - WORKBOOK_BASE_PATH: root directory containing the workbooks
  - FACILITY_MAP: ordered "substring=id" list, e.g. "Aoba=7,Midori=8"
  - STORE_URL and STORE_API_KEY (STORE_KIND=rest) or STORE_DSN (STORE_KIND=postgres)

Validation errors name the environment variable to fix, for example
"STORE_URL is required when STORE_KIND=rest".

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("Scanning %s every %s\n", cfg.Workbook.BasePath, cfg.Pipeline.Interval)
*/
package config
