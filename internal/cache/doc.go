// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package cache provides a generic, thread-safe TTL cache with approximate LRU
eviction.

ReserveSync uses it for the workbook fingerprint table: one entry per workbook
path holding the last observed modification time, size and SHA-256. The
detector consults it on every cycle; the snapshot store persists it across
restarts.

# Behavior

  - Entries expire after the configured TTL (default 24h). Expired entries are
    dropped lazily on Get and eagerly by Sweep.
  - When the entry count exceeds WithMaxEntries, Sweep evicts the entries with
    the oldest access time.
  - GetOrAdd runs at most one factory at a time.
  - No goroutine is started by New. Serve drives Sweep on a ticker and is
    meant to run under the supervisor tree.

# Usage

	fingerprints := cache.New[string, models.FileFingerprint](
	    cache.WithName("fingerprints"),
	    cache.WithTTL(24*time.Hour),
	    cache.WithMaxEntries(10000),
	)
	tree.AddPipelineService(fingerprints)

	if fp, ok := fingerprints.Get(path); ok && fp.SameModTime(info.ModTime()) {
	    // unchanged
	}

# Metrics

Hits, misses, evictions and the live entry count are exported per cache name
(reservesync_cache_*). GetStats returns the same counters for tests and logs.
*/
package cache
