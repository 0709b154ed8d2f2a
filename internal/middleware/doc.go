// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package middleware provides HTTP middleware for the health and metrics server.
//
// Both middlewares use the chi signature func(http.Handler) http.Handler and
// are installed with r.Use:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.PrometheusMetrics)
//
// RequestID propagates X-Request-ID into the zerolog context so handler logs
// carry a request_id field. PrometheusMetrics labels requests by chi route
// pattern, never by raw path.
package middleware
