// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package pipeline drives the synchronization cycle and reports its health.

The Orchestrator runs detect, extract, sync, report and notify in that order,
once at start and then on every interval. Cycles never overlap. A Watcher can
shorten the wait by calling Trigger when workbooks change on disk; triggers
that arrive while one is pending are coalesced.

Lifecycle:

	Starting -> Running <-> HealthCheck
	               |  ^
	               v  |
	            Degraded
	               |
	Stopping -> Stopped

A failed cycle moves the orchestrator to Degraded and the next successful cycle
returns it to Running. Operators are notified about failures at most once per
PipelineConfig.FailureNotifyInterval. After FailureCeiling consecutive failures
Serve returns ErrFailureCeiling, which the supervisor treats as fatal.

On shutdown an in-flight cycle gets ShutdownGrace to finish before its context
is cancelled. Fingerprints are then persisted, the cache is cleared and the
store is closed.

Health:

HealthChecker runs DefaultChecks hourly: free disk space, base path
reachability, store credentials and ping, notifier credentials and report
directory writability.
*/
package pipeline
