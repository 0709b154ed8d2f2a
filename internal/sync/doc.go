// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package sync diffs extracted monthly reservation records against the remote
store and applies the minimal set of writes.

Records are processed in batches. Each batch issues one lookup for all of its
keys, then inserts absent rows and updates rows whose daily counts differ.
Identical rows are left alone, so replaying the same extraction is a no-op.

Failure Handling:

  - Lookups and writes go through retry.Do with the configured policy
  - A batch whose lookup exhausts its retries is skipped and logged
  - Record-level failures are collected into a *SyncError; the run continues
  - Only context cancellation stops a run early

Deletion Reporting:

When Config.DetectDeletions is set, months present remotely but absent from the
current extraction are reported as Deleted changes for every facility that was
extracted. Remote rows are never removed, so the engine remembers what it has
reported: a missing month is reported once per process, and again only after
it has been extracted in between.

Example:

	engine, err := sync.NewEngine(st, sync.Config{BatchSize: 50})
	if err != nil {
	    return err
	}
	changes, err := engine.Sync(ctx, result.Records)
	var syncErr *sync.SyncError
	if errors.As(err, &syncErr) {
	    // partial success: changes holds what was applied
	}
*/
package sync
