// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus families for the registration oracle. Class names label the
// decision counters — a fixed, compiled-in vocabulary — while credential
// names never do (clients choose them, so they would be unbounded).
var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_registration_decisions_total",
			Help: "Registration authorization decisions by class and outcome",
		},
		[]string{"class", "outcome"},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Registration decision latency, cache included",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
		[]string{"class"},
	)

	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Decision cache hits",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_misses_total",
			Help: "Decision cache misses (including expired entries)",
		},
	)

	cacheResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_resets_total",
			Help: "Whole-cache resets from policy mutations, reloads, or overflow",
		},
	)

	cacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authz_cache_entries",
			Help: "Decisions currently cached",
		},
	)

	policyReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_policy_reloads_total",
			Help: "Policy file reloads by outcome",
		},
		[]string{"outcome"},
	)

	auditQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_audit_events_total",
			Help: "Audit events queued for the trail, by decision",
		},
		[]string{"decision"},
	)

	auditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_audit_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		},
	)
)

// RecordDecision counts one registration decision and its latency.
func RecordDecision(class string, allowed bool, duration time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	decisionsTotal.WithLabelValues(class, outcome).Inc()
	decisionDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordCacheHit counts a decision served from cache.
func RecordCacheHit() { cacheHitsTotal.Inc() }

// RecordCacheMiss counts a decision that had to reach Casbin.
func RecordCacheMiss() { cacheMissesTotal.Inc() }

// RecordCacheReset counts a whole-cache reset.
func RecordCacheReset() { cacheResetsTotal.Inc() }

// SetCacheSize publishes the current cache population.
func SetCacheSize(n int) { cacheSize.Set(float64(n)) }

// RecordPolicyReload counts a policy-file reload.
func RecordPolicyReload(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	policyReloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuditQueued counts an audit event accepted into the buffer.
func RecordAuditQueued(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	auditQueuedTotal.WithLabelValues(decision).Inc()
}

// RecordAuditDropped counts an audit event lost to a full buffer.
func RecordAuditDropped() { auditDroppedTotal.Inc() }
