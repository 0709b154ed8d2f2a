// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package models defines the data structures shared across the ReserveSync pipeline.

Key Components:

  - MonthlyReservationRecord: daily reservation counts for one facility and month
  - RecordKey: composite (tenant, facility, year, month) identity of a remote row
  - ChangeRecord: a single New, Changed or Deleted delta produced by a sync cycle
  - FileFingerprint: cached (modification time, content hash) pair per workbook
  - PipelineHealth: in-memory failure counters owned by the orchestrator

Invariants:

Every MonthlyReservationRecord carries exactly DaysIn(year, month) daily slots.
Days without an observed value hold DefaultDailyCount ("0"). Records are built
by the extractor and are treated as read-only by every later stage.

Thread Safety:

Model types carry no internal synchronization. Values are passed between
pipeline stages by copy or handed off without concurrent mutation.
*/
package models
