// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

// Package logging provides centralized zerolog-based structured logging for ReserveSync.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main via Init
//   - JSON output for production, console output for development
//   - Cycle-scoped logging: every line of a pipeline cycle carries cycle_id
//   - An slog adapter so suture supervisor events reach zerolog
//   - Helpers for masking secrets (API keys, DSNs, webhook URLs) before logging
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("base_path", cfg.Workbook.BasePath).Msg("Starting")
//
//	ctx = logging.ContextWithCycleID(ctx, logging.NewCycleID())
//	logging.Ctx(ctx).Info().Int("changes", n).Msg("Sync complete")
//
// # Configuration
//
// Environment Variables (mapped by the config package):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
//
// # Severity Policy
//
// Locked workbooks are logged at DEBUG and unmapped workbooks at WARN.
// Neither is an error. ERROR is reserved for failed cycles and store batches.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging
