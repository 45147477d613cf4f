// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

//go:build nats

package transport

import (
	"context"
	"time"
)

// NewBus dials the configured NATS broker and returns the bus-backed
// transport. An empty url starts an embedded in-process broker instead,
// for single-node deployments with no external NATS.
func NewBus(url string) (Bus, error) {
	if url == "" {
		embedded, err := NewEmbeddedServer("")
		if err != nil {
			return nil, err
		}
		t, err := NewNATSTransport(DefaultNATSConfig(embedded.ClientURL()))
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = embedded.Shutdown(shutdownCtx)
			return nil, err
		}
		t.embedded = embedded
		return t, nil
	}
	return NewNATSTransport(DefaultNATSConfig(url))
}
