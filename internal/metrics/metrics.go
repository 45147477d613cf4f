// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the arbitration daemon:
// - grant/advice notification throughput
// - transaction lifecycle and commit latency
// - resource-set population per class
// - rule-engine call outcomes and circuit-breaker state
// - notification-proxy population per state
// - admin API latency and throughput

var (
	// Arbitration Metrics
	GrantsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbitration_grants_sent_total",
			Help: "Total number of grant notifications delivered to clients",
		},
		[]string{"class"},
	)

	AdvicesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbitration_advices_sent_total",
			Help: "Total number of advice notifications delivered to clients",
		},
		[]string{"class"},
	)

	GrantsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbitration_grants_suppressed_total",
			Help: "Grant notifications suppressed because the resource set was blocked",
		},
	)

	ReleaseRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbitration_release_requests_total",
			Help: "Release requests pushed to clients after a policy revocation",
		},
	)

	ResourceSetsLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbitration_resource_sets",
			Help: "Currently registered resource sets",
		},
		[]string{"class"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbitration_requests_total",
			Help: "Inbound client operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Transaction Metrics
	TransactionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbitration_transactions_open",
			Help: "Transactions created but not yet committed",
		},
	)

	TransactionCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arbitration_transaction_commit_duration_seconds",
			Help:    "Time from transaction creation to ordered commit",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbitration_pending_queue_depth",
			Help: "Entries waiting in per-set grant/advice output queues",
		},
		[]string{"field"},
	)

	OutOfOrderEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbitration_out_of_order_entries_total",
			Help: "Queue entries discarded because their txid predates the committing transaction",
		},
	)

	// Rule Engine Metrics
	RuleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_engine_evaluations_total",
			Help: "Rule-engine goal evaluations by rule name and outcome",
		},
		[]string{"rule", "outcome"},
	)

	RuleEvalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rule_engine_eval_duration_seconds",
			Help:    "Rule-engine evaluation latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25},
		},
		[]string{"rule"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rule_engine_circuit_breaker_state",
			Help: "Rule-engine circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	BuiltinArbitrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbitration_builtin_runs_total",
			Help: "Times the built-in class/priority resolver ran instead of an external rule",
		},
	)

	// Notification Proxy Metrics
	ProxiesLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_proxies",
			Help: "Live notification proxies by state",
		},
		[]string{"state"},
	)

	ProxyTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_proxy_timeouts_total",
			Help: "Play/stop timer expirations driven through the proxy state machine",
		},
		[]string{"kind"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket push clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)

// RecordGrant counts one delivered grant notification.
func RecordGrant(class string) {
	GrantsSent.WithLabelValues(class).Inc()
}

// RecordAdvice counts one delivered advice notification.
func RecordAdvice(class string) {
	AdvicesSent.WithLabelValues(class).Inc()
}

// RecordRequest counts one inbound client operation.
func RecordRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRuleEval counts one rule-engine evaluation and its latency.
func RecordRuleEval(rule string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RuleEvaluations.WithLabelValues(rule, outcome).Inc()
	RuleEvalDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordAPIRequest records metrics for an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
