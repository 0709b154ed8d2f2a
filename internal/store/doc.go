// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package store provides the remote relational store for monthly reservation rows.

Three backends implement Store:

  - RESTStore: PostgREST-style HTTPS API (apikey + bearer headers), wrapped in
    a sony/gobreaker circuit breaker. 4xx responses other than 408 and 429 are
    marked retry.Permanent.
  - PostgresStore: direct pgx connection pool. Batch lookups join unnested key
    arrays; writes run in a transaction.
  - MemoryStore: map-backed store for tests and dry runs.

Open selects the backend from config.StoreConfig.Kind.
*/
package store
