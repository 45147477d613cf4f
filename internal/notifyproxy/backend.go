// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"

	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/resource"
)

// NopBackend is the Backend used when no renderer service is attached to
// the daemon: plays are acknowledged in the log and nothing is rendered.
// Installations with a real renderer replace it at startup; everything on
// the arbitration side (grants, timers, state transitions) behaves
// identically either way.
type NopBackend struct{}

func (NopBackend) ForwardPlay(_ context.Context, proxyID uint64, eventName string, granted resource.Mask, mode PlayMode) error {
	logging.Debug().
		Uint64("proxy_id", proxyID).
		Str("event", eventName).
		Str("granted", granted.String()).
		Str("mode", mode.String()).
		Msg("notifyproxy: play forwarded to nop backend")
	return nil
}

func (NopBackend) ForwardStop(_ context.Context, proxyID uint64) error {
	logging.Debug().Uint64("proxy_id", proxyID).Msg("notifyproxy: stop forwarded to nop backend")
	return nil
}

func (NopBackend) ForwardPauseResume(_ context.Context, proxyID uint64, pause bool) error {
	logging.Debug().Uint64("proxy_id", proxyID).Bool("pause", pause).Msg("notifyproxy: pause/resume forwarded to nop backend")
	return nil
}
