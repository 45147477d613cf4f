// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package logging provides centralized zerolog-based structured logging for the daemon.
//
// One process-wide root logger backs everything: the arbitration loop,
// the transaction coordinator, the notification proxies, the supervisor
// tree (through the slog bridge), the bus library (through the
// watermill adapter), and the admin API.
//
// # Quick Start
//
//	import "github.com/resarbiter/resourced/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log with structured fields
//	logging.Info().Uint32(logging.FieldManagerID, id).Msg("set registered")
//	logging.Error().Err(err).Msg("transport send failed")
//
// # Configuration
//
// Environment Variables (applied through internal/config):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Shared Field Names
//
// The Field* constants name the identifiers every subsystem stamps on
// its events, so one manager_id query in the log store follows a grant
// from inbound request through queueing to delivery:
//
//	logging.FieldManagerID  // "manager_id"
//	logging.FieldTxID       // "txid"
//	logging.FieldClass      // "class"
//	logging.FieldComponent  // "component"
//	logging.FieldRequestID  // "request_id"
//
// # Operation Scope
//
// A context.Context carries a Scope: the admin request id plus the
// arbitration coordinates the operation has resolved so far. Annotate
// as the operation narrows, then log through Ctx:
//
//	ctx = logging.ContextWithSet(ctx, managerID, className)
//	ctx = logging.ContextWithTx(ctx, txid)
//	logging.Ctx(ctx).Info().Msg("acquire resolved")
//	// {"level":"info","manager_id":7,"class":"player","txid":42,...}
//
// Zero-valued Scope fields are omitted from output.
//
// # Component Loggers
//
//	txLog := logging.Component("transaction")
//	txLog.Info().Uint64(logging.FieldTxID, txid).Msg("commit")
//
// # Bridges
//
// NewSlogLogger returns the *slog.Logger the suture supervisor tree
// consumes via sutureslog; NewWatermillAdapter (nats builds) feeds the
// bus library's internal logging into the same stream. Both tag their
// events with a component field.
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Prefer structured fields over formatted strings; the shared field
// names above are searchable, Msgf text is not.
//
// # Testing
//
//	var buf bytes.Buffer
//	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
//	// ... assert on buf
//
// NewTestLogger(&buf) returns an independent logger when a test must
// not touch the process-wide root.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use; the root logger
// swap in Init/SetLevelString is guarded by an RWMutex.
package logging
