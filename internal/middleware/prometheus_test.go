// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/resarbiter/resourced/internal/metrics"
)

func TestMetricsRecordsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/sets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/sets/{id}", "200"))

	for _, path := range []string{"/sets/1", "/sets/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/sets/{id}", "200"))
	if got := after - before; got != 2 {
		t.Errorf("requests recorded under the route pattern = %v, want 2", got)
	}
}

func TestMetricsCapturesErrorStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/classes/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/classes/{name}", "404"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/classes/spaceship", nil))

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/classes/{name}", "404"))
	if got := after - before; got != 1 {
		t.Errorf("404 recorded = %v, want 1", got)
	}
}

func TestMetricsActiveGaugeBalances(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(metrics.APIActiveRequests)
	})

	before := testutil.ToFloat64(metrics.APIActiveRequests)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	after := testutil.ToFloat64(metrics.APIActiveRequests)

	if during != before+1 {
		t.Errorf("in-flight gauge during request = %v, want %v", during, before+1)
	}
	if after != before {
		t.Errorf("in-flight gauge after request = %v, want %v", after, before)
	}
}
