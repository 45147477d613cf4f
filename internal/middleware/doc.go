// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package middleware provides the chi middleware stack for the admin surface.

Everything here is func(http.Handler) http.Handler and chi-aware: route
labels come from the router's parameterized pattern ("/sets/{id}"), not
the raw path, so a client walking manager ids cannot inflate metric or
stats cardinality.

Key Components:

  - RequestID: X-Request-ID echo/generation, seeding the logging Scope
  - Metrics: Prometheus request count/latency/in-flight instrumentation
  - PerformanceMonitor: ring-buffered per-route latency percentiles
  - Compression: pooled gzip for clients that accept it

Stack order, as composed by internal/api:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	...
	r.Use(httprate.LimitByIP(60, time.Minute))
	r.Use(middleware.Metrics)
	r.Use(pm.Middleware)
	r.Use(middleware.Compression)

Usage Example - Performance Monitor:

	pm := middleware.NewPerformanceMonitor(1024)
	r.Use(pm.Middleware)

	// From the /debug/performance endpoint:
	stats := pm.GetStats() // per-route p50/p95/p99 over the sample window

The monitor keeps a fixed-size ring of recent samples: statistics
describe the current window, not process lifetime, and requests slower
than one second are logged at warn with their route and status.

Usage Example - Request ID:

	// Inside any handler below the stack:
	id := middleware.GetRequestID(r.Context())

An inbound X-Request-ID is honored so a proxy's id survives end to end;
otherwise one is generated. The same id lands on the response header and
in every log line emitted through logging.Ctx for that request.

Compression skips websocket upgrades (the /ws endpoint hijacks the
connection) and bodyless responses (204/304 never claim an encoding).
*/
package middleware
