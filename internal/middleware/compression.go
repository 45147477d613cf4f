// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// gzipPool recycles writers across requests; the admin API's responses
// are small and frequent, so per-request allocation dominates without it.
var gzipPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	},
}

// gzipWriter defers the encoding decision to the first write: a handler
// that never writes a body (304, 101 upgrade) must not emit gzip headers.
type gzipWriter struct {
	http.ResponseWriter
	gz      *gzip.Writer
	started bool
}

func (w *gzipWriter) start() {
	if w.started {
		return
	}
	w.started = true
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Encoding", "gzip")
	w.gz.Reset(w.ResponseWriter)
}

func (w *gzipWriter) WriteHeader(status int) {
	if status != http.StatusNoContent && status != http.StatusNotModified && status != http.StatusSwitchingProtocols {
		w.start()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	w.start()
	return w.gz.Write(b)
}

func (w *gzipWriter) close() {
	if w.started {
		_ = w.gz.Close()
		w.gz.Reset(io.Discard)
	}
	gzipPool.Put(w.gz)
}

// Compression gzips responses for clients that accept it. Websocket
// upgrades pass through untouched: the /ws endpoint hijacks the
// connection and a wrapped writer would break the handshake.
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
			strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")

		gw := &gzipWriter{ResponseWriter: w, gz: gzipPool.Get().(*gzip.Writer)}
		defer gw.close()

		next.ServeHTTP(gw, r)
	})
}
