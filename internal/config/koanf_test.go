// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv sets the minimum environment for a valid memory-store config.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("WORKBOOK_BASE_PATH", t.TempDir())
	t.Setenv("FACILITY_MAP", "Aoba=7,Midori=8")
	t.Setenv("STORE_KIND", "memory")
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Workbook.Pattern != "**/*.xlsx" {
		t.Errorf("Workbook.Pattern = %q, want **/*.xlsx", cfg.Workbook.Pattern)
	}
	if cfg.Workbook.DateColumn != "A" {
		t.Errorf("Workbook.DateColumn = %q, want A", cfg.Workbook.DateColumn)
	}
	if cfg.Workbook.DetectConcurrency != 4 {
		t.Errorf("Workbook.DetectConcurrency = %d, want 4", cfg.Workbook.DetectConcurrency)
	}
	if cfg.Store.BatchSize != 50 {
		t.Errorf("Store.BatchSize = %d, want 50", cfg.Store.BatchSize)
	}
	if cfg.Store.DetectDeletions {
		t.Error("Store.DetectDeletions should be false by default")
	}
	if cfg.Pipeline.Interval != 5*time.Minute {
		t.Errorf("Pipeline.Interval = %v, want 5m", cfg.Pipeline.Interval)
	}
	if cfg.Pipeline.CycleTimeout != 4*time.Minute {
		t.Errorf("Pipeline.CycleTimeout = %v, want 4m", cfg.Pipeline.CycleTimeout)
	}
	if cfg.Pipeline.FailureCeiling != 10 {
		t.Errorf("Pipeline.FailureCeiling = %d, want 10", cfg.Pipeline.FailureCeiling)
	}
	if cfg.Pipeline.ShutdownGrace != 20*time.Second {
		t.Errorf("Pipeline.ShutdownGrace = %v, want 20s", cfg.Pipeline.ShutdownGrace)
	}
	if cfg.Report.RetentionDays != 30 {
		t.Errorf("Report.RetentionDays = %d, want 30", cfg.Report.RetentionDays)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay != time.Second || cfg.Retry.MaxDelay != 30*time.Second {
		t.Errorf("Retry = %+v, want 3/1s/30s", cfg.Retry)
	}
	if cfg.Notify.Timeout != 30*time.Second {
		t.Errorf("Notify.Timeout = %v, want 30s", cfg.Notify.Timeout)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"WORKBOOK_BASE_PATH", "workbook.base_path"},
		{"FACILITY_MAP", "facilities.map"},
		{"TENANT_ID", "facilities.tenant_id"},
		{"STORE_API_KEY", "store.api_key"},
		{"NOTIFY_CLIENT_SECRET", "notify.client_secret"},
		{"PIPELINE_FAILURE_CEILING", "pipeline.failure_ceiling"},
		{"HTTP_ADDR", "server.addr"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("test: true"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom_config.yaml")
		if err := os.WriteFile(customPath, []byte("test: true"), 0o644); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}

		t.Setenv(ConfigPathEnvVar, customPath)
		if result := findConfigFile(); result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TENANT_ID", "3")
	t.Setenv("STORE_BATCH_SIZE", "25")
	t.Setenv("PIPELINE_INTERVAL", "10m")
	t.Setenv("NOTIFY_SCOPES", "chat.write, chat.read")
	t.Setenv("HTTP_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Facilities.TenantID != 3 {
		t.Errorf("TenantID = %d, want 3", cfg.Facilities.TenantID)
	}
	if len(cfg.Facilities.Map) != 2 || cfg.Facilities.Map[0].Match != "Aoba" || cfg.Facilities.Map[1].ID != 8 {
		t.Errorf("Facilities.Map = %+v, want [Aoba=7 Midori=8]", cfg.Facilities.Map)
	}
	if cfg.Store.BatchSize != 25 {
		t.Errorf("Store.BatchSize = %d, want 25", cfg.Store.BatchSize)
	}
	if cfg.Pipeline.Interval != 10*time.Minute {
		t.Errorf("Pipeline.Interval = %v, want 10m", cfg.Pipeline.Interval)
	}
	if len(cfg.Notify.Scopes) != 2 || cfg.Notify.Scopes[1] != "chat.read" {
		t.Errorf("Notify.Scopes = %v, want [chat.write chat.read]", cfg.Notify.Scopes)
	}
	if cfg.Server.Enabled {
		t.Error("Server.Enabled should be false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Defaults still apply for unset values
	if cfg.Pipeline.CycleTimeout != 4*time.Minute {
		t.Errorf("Pipeline.CycleTimeout = %v, want 4m (default)", cfg.Pipeline.CycleTimeout)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	base := t.TempDir()
	configContent := `
workbook:
  base_path: ` + base + `
  sheet_name: Bookings
  date_column: B
facilities:
  tenant_id: 2
  map:
    - match: Aoba
      id: 7
    - match: Ao
      id: 9
store:
  kind: rest
  url: https://store.example.com
  api_key: secret-key
  detect_deletions: true
report:
  retention_days: 7
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("STORE_API_KEY", "env-key")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Workbook.SheetName != "Bookings" || cfg.Workbook.DateColumn != "B" {
		t.Errorf("Workbook = %+v", cfg.Workbook)
	}
	if cfg.Store.APIKey != "env-key" {
		t.Errorf("Store.APIKey = %q, env should override file", cfg.Store.APIKey)
	}
	if !cfg.Store.DetectDeletions {
		t.Error("Store.DetectDeletions should be true from file")
	}
	if cfg.Report.RetentionDays != 7 {
		t.Errorf("Report.RetentionDays = %d, want 7", cfg.Report.RetentionDays)
	}

	// Ordered mappings: the first match wins even when a later entry also matches.
	id, ok := cfg.Facilities.FacilityID("Aoba_2024.xlsx")
	if !ok || id != 7 {
		t.Errorf("FacilityID(Aoba_2024.xlsx) = %d, %v; want 7, true", id, ok)
	}
	id, ok = cfg.Facilities.FacilityID("Aomori.xlsx")
	if !ok || id != 9 {
		t.Errorf("FacilityID(Aomori.xlsx) = %d, %v; want 9, true", id, ok)
	}
	if _, ok := cfg.Facilities.FacilityID("Midori.xlsx"); ok {
		t.Error("FacilityID(Midori.xlsx) should not match")
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing base path",
			env:     map[string]string{"WORKBOOK_BASE_PATH": ""},
			wantErr: "WORKBOOK_BASE_PATH is required",
		},
		{
			name:    "rest store without url",
			env:     map[string]string{"STORE_KIND": "rest"},
			wantErr: "STORE_URL is required",
		},
		{
			name:    "rest store with path in url",
			env:     map[string]string{"STORE_KIND": "rest", "STORE_URL": "https://store.example.com/rest/v1", "STORE_API_KEY": "k"},
			wantErr: "STORE_URL is invalid",
		},
		{
			name:    "postgres store without dsn",
			env:     map[string]string{"STORE_KIND": "postgres"},
			wantErr: "STORE_DSN is required",
		},
		{
			name:    "unknown store kind",
			env:     map[string]string{"STORE_KIND": "sqlite"},
			wantErr: "STORE_KIND must be",
		},
		{
			name:    "webhook without credentials",
			env:     map[string]string{"NOTIFY_WEBHOOK_URL": "https://chat.example.com/hooks/abc"},
			wantErr: "NOTIFY_TOKEN_URL, NOTIFY_CLIENT_ID and NOTIFY_CLIENT_SECRET are required",
		},
		{
			name:    "cycle timeout exceeds interval",
			env:     map[string]string{"PIPELINE_INTERVAL": "1m", "PIPELINE_CYCLE_TIMEOUT": "2m"},
			wantErr: "PIPELINE_CYCLE_TIMEOUT",
		},
		{
			name:    "malformed facility map",
			env:     map[string]string{"FACILITY_MAP": "Aoba"},
			wantErr: "FACILITY_MAP",
		},
		{
			name:    "bad column letter",
			env:     map[string]string{"WORKBOOK_DATE_COLUMN": "A1"},
			wantErr: "workbook.date_column",
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatalf("LoadWithKoanf() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseFacilityMap(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []FacilityMapping
		wantErr bool
	}{
		{"single", "Aoba=7", []FacilityMapping{{"Aoba", 7}}, false},
		{"ordered with spaces", " Aoba = 7 , Midori=8,", []FacilityMapping{{"Aoba", 7}, {"Midori", 8}}, false},
		{"missing id", "Aoba=", nil, true},
		{"non-numeric id", "Aoba=x", nil, true},
		{"zero id", "Aoba=0", nil, true},
		{"missing separator", "Aoba", nil, true},
		{"empty", "", []FacilityMapping{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFacilityMap(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFacilityMap(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://store.example.com", false},
		{"http://10.0.0.5:3000/", false},
		{"ftp://store.example.com", true},
		{"https://", true},
		{"https://store.example.com/rest", true},
		{"https://store.example.com?x=1", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := validateHTTPURL(tt.url, "STORE_URL"); (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}

	if err := validateEndpointURL("https://chat.example.com/hooks/abc?x=1", "NOTIFY_WEBHOOK_URL"); err != nil {
		t.Errorf("validateEndpointURL should accept paths and queries: %v", err)
	}
}
