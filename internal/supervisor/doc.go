// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

/*
Package supervisor provides process supervision for ReserveSync using suture v4.

The tree separates the synchronization pipeline from the HTTP surface so a
crashing watcher or sweeper is restarted without taking the health endpoint
down:

	RootSupervisor ("reservesync")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── CriticalService(pipeline-orchestrator)
	│   ├── workbook-watcher (if workbook.watch)
	│   ├── fingerprint cache sweeper
	│   └── report-purger
	└── APISupervisor ("api-layer")
	    └── HealthServer (if server.enabled)

# Failure Handling

Crashed services are restarted. The failure counter decays over
FailureDecay seconds; above FailureThreshold the layer waits FailureBackoff
before the next restart.

The orchestrator is the exception. When it reaches its consecutive-failure
ceiling it returns pipeline.ErrFailureCeiling, which the CriticalService
wrapper turns into suture.ErrTerminateSupervisorTree. The root supervisor then
stops every layer and Serve returns, letting the command exit non-zero.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewCriticalService(orch, "pipeline", pipeline.ErrFailureCeiling))
	tree.AddAPIService(services.NewHealthServer(server, 10*time.Second))

	if err := tree.Serve(ctx); err != nil {
	    ...
	}

Supervisor events (service panics, restarts, backoff) are logged through the
sutureslog adapter into the zerolog-backed slog handler.

If services miss the shutdown timeout, UnstoppedServiceReport lists them.
*/
package supervisor
