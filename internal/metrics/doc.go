// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and are
exposed at /metrics by the api package when the HTTP server is enabled.

# Available Metrics

Pipeline Metrics:
  - reservesync_cycles_total: Cycles by result (counter)
    Labels: result (success, failure, timeout, unchanged)
  - reservesync_cycle_duration_seconds: Cycle latency (histogram)
  - reservesync_consecutive_failures: Current failure streak (gauge)
  - reservesync_last_success_timestamp: Unix time of last good cycle (gauge)
  - reservesync_pipeline_state: Orchestrator state (gauge)
  - reservesync_health_check_status: Per-component health (gauge)

Detection and Extraction Metrics:
  - reservesync_files_scanned_total: Files by detection outcome (counter)
  - reservesync_files_extracted_total: Workbooks by extraction status (counter)
  - reservesync_records_extracted_total: Monthly records produced (counter)

Sync Metrics:
  - reservesync_changes_total: Changes by kind (counter)
  - reservesync_store_operations_total: Store calls by backend, operation, result
  - reservesync_store_operation_duration_seconds: Store latency (histogram)
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total

Cache Metrics:
  - reservesync_cache_hits_total, reservesync_cache_misses_total,
    reservesync_cache_evictions_total, reservesync_cache_entries
    Labels: cache

Notification and Report Metrics:
  - reservesync_notifications_total: Labels: result
  - reservesync_reports_written_total, reservesync_reports_purged_total

# Usage

	start := time.Now()
	err := runCycle(ctx)
	metrics.RecordCycle("success", time.Since(start))
*/
package metrics
