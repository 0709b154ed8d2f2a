// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package detect finds workbooks whose content changed between cycles.

Each pass enumerates the share with a doublestar glob (retried, since network
shares fail transiently), probes every file for an exclusive lock, and compares
its fingerprint with the cached one:

  - same modification time and size: unchanged, no hashing
  - otherwise the SHA-256 of the content decides; a new hash marks the file
    changed, an equal hash only refreshes the cached modification time

The cache entry is written as soon as a difference is found, so a retried
cycle does not report the same file twice. Fingerprints can be persisted to
BadgerDB (BadgerStore) so a restart does not treat every workbook as new.
*/
package detect
