// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package api serves the optional health and metrics HTTP surface.

Routes:

	GET  /healthz         liveness, 200 while the process runs
	GET  /readyz          pipeline state and last health report, 503 when not ready
	GET  /metrics         Prometheus exposition (promhttp)
	GET  /api/v1/status   readiness payload, always 200
	POST /api/v1/sync     request an immediate cycle (rate limited per IP)

Every JSON body uses models.APIResponse and is encoded with goccy/go-json.
The server runs under the api-layer supervisor and is disabled with
server.enabled=false.
*/
package api
