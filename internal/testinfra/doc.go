// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package testinfra provides test infrastructure shared across packages.
//
// MockChatServer emulates the notification endpoint (OAuth2 token issuer plus
// webhook) and is available to ordinary unit tests.
//
// Container helpers use testcontainers-go and are only compiled with the
// integration build tag:
//
//	go test -tags=integration ./...
//
// # PostgreSQL Container
//
//	func TestStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, pg.Container)
//
//	    s, err := store.NewPostgresStore(ctx, store.PostgresConfig{DSN: pg.DSN})
//	    ...
//	}
package testinfra
