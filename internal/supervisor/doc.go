// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package supervisor provides process supervision for the daemon using suture v4.

The supervisor tree keeps long-running services alive with exponential
backoff restart, isolating failures so one crashing subsystem never takes
the arbitration core down with it.

# Tree Structure

	root ("resourced")
	├── store-layer
	│   └── policy-store GC (badger value-log)
	├── bus-layer
	│   ├── bus listener (client request dispatch)
	│   └── websocket hub (grant/advice push)
	└── api-layer
	    └── admin API (chi admin/debug surface)

Failure isolation means:
  - A crash in the bus listener doesn't affect the admin API
  - A crash in the websocket hub doesn't affect request dispatch
  - The arbitration state itself lives outside the tree; services hold
    references into it and recover by reattaching, not rebuilding

# Restart Semantics

Each supervisor applies the same policy (DefaultTreeConfig):

	FailureThreshold: 5 failures
	FailureDecay:     30 seconds
	FailureBackoff:   15 seconds

	# Single crash - immediate restart
	Service crashes -> Counter: 1 -> Restart immediately

	# Crash loop - backoff
	5 crashes within the decay window -> Supervisor enters backoff,
	waits 15s, then resumes restarting

# Usage

	tree, err := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddBusService(busListener)
	tree.AddAPIService(adminServer)
	err = tree.Serve(ctx)

Serve blocks until ctx is cancelled; every service receives the
cancellation and is expected to return promptly. Services are any
suture.Service (Serve(ctx) error); returning nil removes the service,
returning an error triggers a restart.

# Logging

Supervisor events (restarts, backoff, termination) are routed through
sutureslog into the process-wide zerolog logger via the slog adapter in
internal/logging, so they carry the same structured format as everything
else.

# Concurrency

SupervisorTree methods are safe for concurrent use:
  - Add* methods may be called before or after Serve
  - Remove operations are synchronized
*/
package supervisor
