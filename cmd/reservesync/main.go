// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package main is the entry point for ReserveSync.
//
// ReserveSync watches a directory tree of facility reservation workbooks,
// extracts the current year's daily counts per facility and month, and keeps a
// remote relational store in sync. Every applied change is written to a CSV
// audit report and announced to a chat webhook.
//
// # Commands
//
//	reservesync run     supervised service (default)
//	reservesync once    run a single cycle and exit
//	reservesync check   run the health checks, print JSON and exit
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (WORKBOOK_BASE_PATH, STORE_URL, FACILITY_MAP, ...)
//   - Config file (--config, CONFIG_PATH, ./config.yaml)
//   - Built-in defaults
//
// # Exit Codes
//
//	0  normal or signal-initiated shutdown
//	1  configuration error, failed one-shot cycle or failed health check
//	2  consecutive failure ceiling reached
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. An in-flight cycle gets
// pipeline.shutdown_grace to finish before it is cancelled; fingerprints are
// persisted and the store is closed either way.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tomtom215/reservesync/internal/logging"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitCeiling = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		logging.Error().Err(err).Msg("ReserveSync exited with error")
	}
	os.Exit(exitCode(err))
}
