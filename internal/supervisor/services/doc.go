// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package services provides suture.Service wrappers for ReserveSync components.

Most pipeline components (orchestrator, watcher, cache sweeper, report
purger) already implement Serve(ctx) error and String() and are added to the
tree directly. The wrappers here cover the two remaining lifecycles:

Health Server (HealthServer):
  - Binds the listener inside Serve, so a taken port is a service failure
  - Reports the bound address, which tests use with ":0"
  - Drains in-flight probes and scrapes for a bounded time on cancellation

Critical Service (CriticalService):
  - Wraps the pipeline orchestrator
  - Maps fatal sentinel errors (the consecutive-failure ceiling) to
    suture.ErrTerminateSupervisorTree so the process exits instead of
    restarting the pipeline forever
  - Records the terminating cause for the exit code

Return behavior of a wrapped service:
  - nil or error: restarted, with backoff once failures pile up
  - suture.ErrDoNotRestart: removed from the tree
  - suture.ErrTerminateSupervisorTree: whole tree stops
*/
package services
