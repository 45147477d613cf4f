// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the arbitration daemon using the Prometheus client
library, exposing metrics for monitoring grant throughput, transaction
latency, rule-engine health, and the admin API surface.

# Overview

The package provides metrics for:
  - Grant/advice notification delivery per policy class
  - Transaction creation, ordered commit, and commit latency
  - Per-set pending-queue depth and out-of-order discards
  - Rule-engine evaluation outcomes and circuit-breaker state
  - Notification-proxy population per state-machine state
  - Admin API request latency, throughput, and rate-limit rejections
  - WebSocket push-client connections

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8870/metrics

# Usage

Counters and gauges are package-level promauto collectors; hot paths call
the helper functions so label handling stays in one place:

	metrics.RecordGrant("player")
	metrics.RecordRuleEval("resource_request", elapsed, err)
	metrics.TransactionsOpen.Inc()

The arbitration loop is single-threaded, but collectors are safe for
concurrent use, so the admin API and websocket hub record into the same
families without coordination.

# Cardinality

Label values are drawn from closed sets (the fixed class table, the rule
vocabulary, proxy state names, HTTP method/endpoint) so no label can grow
unboundedly with client traffic. Client addresses and manager ids are
deliberately never used as labels.
*/
package metrics
