// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/resarbiter/resourced/internal/logging"
)

// slowRequestThreshold flags requests that held the admin surface for
// too long; anything near it on a read-only introspection endpoint
// means a snapshot is scanning more state than it should.
const slowRequestThreshold = time.Second

// sample is one observed request, grouped by chi route pattern so
// /sets/7 and /sets/9 land in the same bucket.
type sample struct {
	route      string
	method     string
	durationMS int64
	status     int
}

// EndpointStats is the aggregated latency profile of one route, served
// by the /debug/performance endpoint.
type EndpointStats struct {
	Path         string
	RequestCount int64
	AvgDuration  float64
	P50Duration  int64
	P95Duration  int64
	P99Duration  int64
	MinDuration  int64
	MaxDuration  int64
}

// PerformanceMonitor keeps a fixed-size ring of recent request samples.
// Old samples fall off the back; aggregate statistics always describe
// the current window, not process lifetime.
type PerformanceMonitor struct {
	mu      sync.RWMutex
	ring    []sample
	next    int
	filled  bool
}

// NewPerformanceMonitor sizes the sample window. windowSize at or below
// zero gets a usable default.
func NewPerformanceMonitor(windowSize int) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 1024
	}
	return &PerformanceMonitor{ring: make([]sample, windowSize)}
}

func (pm *PerformanceMonitor) record(s sample) {
	pm.mu.Lock()
	pm.ring[pm.next] = s
	pm.next++
	if pm.next == len(pm.ring) {
		pm.next = 0
		pm.filled = true
	}
	pm.mu.Unlock()
}

// window returns the valid samples in the ring, oldest first.
func (pm *PerformanceMonitor) window() []sample {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if !pm.filled {
		out := make([]sample, pm.next)
		copy(out, pm.ring[:pm.next])
		return out
	}
	out := make([]sample, 0, len(pm.ring))
	out = append(out, pm.ring[pm.next:]...)
	out = append(out, pm.ring[:pm.next]...)
	return out
}

// GetStats aggregates the current window per route, busiest first.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	byRoute := make(map[string][]int64)
	for _, s := range pm.window() {
		key := s.method + " " + s.route
		byRoute[key] = append(byRoute[key], s.durationMS)
	}

	stats := make([]EndpointStats, 0, len(byRoute))
	for route, durations := range byRoute {
		sorted := make([]int64, len(durations))
		copy(sorted, durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, d := range sorted {
			sum += d
		}

		stats = append(stats, EndpointStats{
			Path:         route,
			RequestCount: int64(len(sorted)),
			AvgDuration:  float64(sum) / float64(len(sorted)),
			P50Duration:  percentile(sorted, 0.50),
			P95Duration:  percentile(sorted, 0.95),
			P99Duration:  percentile(sorted, 0.99),
			MinDuration:  sorted[0],
			MaxDuration:  sorted[len(sorted)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Path < stats[j].Path
	})
	return stats
}

// Middleware samples every request passing through it.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		pm.record(sample{
			route:      routePattern(r),
			method:     r.Method,
			durationMS: elapsed.Milliseconds(),
			status:     sw.status,
		})

		if elapsed > slowRequestThreshold {
			logging.Warn().
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Dur("elapsed", elapsed).
				Int("status", sw.status).
				Msg("middleware: slow admin request")
		}
	})
}

// routePattern prefers chi's parameterized pattern ("/sets/{id}") over
// the raw path, keeping per-route grouping bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// percentile reads the p-quantile from an ascending-sorted slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

// statusWriter captures the response status for sampling and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
