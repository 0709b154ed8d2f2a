// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the synchronization pipeline:
// - Pipeline cycles and health
// - Change detection and extraction volume
// - Remote store operations and circuit breaker state
// - Fingerprint cache efficiency
// - Notifications and audit reports

var (
	// Pipeline Metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_cycles_total",
			Help: "Total number of pipeline cycles by result",
		},
		[]string{"result"}, // "success", "failure", "timeout", "unchanged"
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservesync_cycle_duration_seconds",
			Help:    "Duration of pipeline cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 240},
		},
	)

	ConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservesync_consecutive_failures",
			Help: "Current number of consecutive failed pipeline cycles",
		},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservesync_last_success_timestamp",
			Help: "Unix timestamp of the last successful cycle",
		},
	)

	PipelineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservesync_pipeline_state",
			Help: "Orchestrator state (0=starting, 1=running, 2=health_check, 3=degraded, 4=stopping, 5=stopped)",
		},
	)

	HealthCheckStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reservesync_health_check_status",
			Help: "Health check result per component (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	// Detection Metrics
	FilesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_files_scanned_total",
			Help: "Total number of workbook files examined by outcome",
		},
		[]string{"outcome"}, // "changed", "unchanged", "locked", "failed"
	)

	// Extraction Metrics
	RecordsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservesync_records_extracted_total",
			Help: "Total number of monthly records extracted from workbooks",
		},
	)

	FilesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_files_extracted_total",
			Help: "Total number of workbooks processed by extraction status",
		},
		[]string{"status"},
	)

	// Sync Metrics
	ChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_changes_total",
			Help: "Total number of detected changes by kind",
		},
		[]string{"kind"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_store_operations_total",
			Help: "Total number of remote store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservesync_store_operation_duration_seconds",
			Help:    "Duration of remote store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_cache_evictions_total",
			Help: "Total number of cache entries removed by expiry, eviction or clear",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reservesync_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Notification and Report Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservesync_notifications_total",
			Help: "Total number of notification attempts by result",
		},
		[]string{"result"}, // "sent", "failed", "suppressed"
	)

	ReportsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservesync_reports_written_total",
			Help: "Total number of audit CSV files written",
		},
	)

	ReportsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservesync_reports_purged_total",
			Help: "Total number of audit CSV files removed by retention",
		},
	)

	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordCycle records the outcome of one pipeline cycle
func RecordCycle(result string, duration time.Duration) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(duration.Seconds())
	if result == "success" || result == "unchanged" {
		LastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordStoreOperation records a remote store call
func RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	StoreOperations.WithLabelValues(backend, operation, result).Inc()
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNotification records a notification attempt
func RecordNotification(err error) {
	if err != nil {
		NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}
	NotificationsTotal.WithLabelValues("sent").Inc()
}

// SetHealth records a component health result
func SetHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	HealthCheckStatus.WithLabelValues(component).Set(v)
}
