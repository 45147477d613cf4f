// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/config"
	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/transaction"
)

func newAuthedServer(t *testing.T, secret string) *Server {
	t.Helper()
	manager := arbiter.New(arbiter.Config{
		Store:     factstore.New(),
		Classes:   resourceclass.NewDirectory(),
		Txns:      transaction.NewCoordinator(1),
		Transport: nullTransport{},
	})
	cfg := config.WebConfig{
		Addr:            "127.0.0.1:0",
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		JWTSecret:       secret,
	}
	return NewServer(cfg, manager, transaction.NewCoordinator(1), nil, nil)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops-dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	srv := newAuthedServer(t, "test-secret")

	rec := get(t, srv.Handler(), "/api/v1/sets")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestBearerAuthRejectsWrongSecret(t *testing.T) {
	srv := newAuthedServer(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sets", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	srv := newAuthedServer(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sets", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthStaysOpenWithAuthEnabled(t *testing.T) {
	srv := newAuthedServer(t, "test-secret")

	if rec := get(t, srv.Handler(), "/api/v1/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
