// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package middleware

import (
	"context"
	"net/http"

	"github.com/resarbiter/resourced/internal/logging"
)

// requestIDHeader is echoed to the client and honored on the way in, so
// an upstream proxy's id survives end to end.
const requestIDHeader = "X-Request-ID"

// RequestID stamps every admin-API request with an id and seeds the
// logging Scope with it, so handler log lines and the eventual response
// share one searchable identifier.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := logging.ContextWithRequestID(r.Context(), id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id recorded on ctx by RequestID, or
// "" outside the admin-API stack.
func GetRequestID(ctx context.Context) string {
	return logging.ScopeFrom(ctx).RequestID
}
