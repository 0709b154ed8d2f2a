// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package pipeline

// State is the orchestrator lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateHealthCheck
	StateDegraded
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateHealthCheck:
		return "health_check"
	case StateDegraded:
		return "degraded"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Ready reports whether the orchestrator is accepting cycles.
func (s State) Ready() bool {
	return s == StateRunning || s == StateHealthCheck || s == StateDegraded
}
