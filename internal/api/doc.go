// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package api provides the read-only admin/debug HTTP surface using Chi router.

The arbitration loop itself never blocks on this package: every endpoint
reads race-safe snapshots (arbiter.SetSnapshot, transaction.Coordinator
counters) rather than live core state, and the whole surface is
rate-limited so a misbehaving dashboard cannot starve the daemon.

# Endpoints

	GET /api/v1/health          liveness (process up)
	GET /api/v1/health/ready    readiness (transport connected)
	GET /api/v1/sets            every live resource set, ordered by manager id
	GET /api/v1/sets/{id}       one resource set
	GET /api/v1/classes         the compiled-in class directory
	GET /api/v1/classes/{name}  one class's membership in priority order
	GET /api/v1/transactions    open-transaction count
	GET /api/v1/ws              websocket upgrade for grant/advice push
	GET /metrics                Prometheus text exposition
	GET /swagger/*              OpenAPI UI (when enabled)

# Middleware

The global stack mirrors the rest of the daemon's HTTP conventions:
request IDs for log correlation, panic recovery, CORS for browser
dashboards, per-client rate limiting via httprate, and Prometheus
request instrumentation from internal/middleware.
*/
package api
