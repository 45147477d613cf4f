// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/resarbiter/resourced/internal/metrics"
)

// Metrics records every request into the daemon's Prometheus families:
// total count by method/route/status, latency histogram, and the
// in-flight gauge. Routes are labelled by chi pattern, never raw path,
// so a client iterating manager ids cannot inflate label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		// The chi pattern is only complete after routing ran.
		metrics.RecordAPIRequest(
			r.Method,
			routePattern(r),
			strconv.Itoa(sw.status),
			time.Since(start),
		)
	})
}
