// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

//go:build !nats

package transport

import "errors"

// NewBus reports that the bus transport is not compiled in. Build with
// the nats tag to enable it; the loopback transport remains available in
// every build.
func NewBus(url string) (Bus, error) {
	return nil, errors.New("transport: nats support not compiled in (build with -tags nats)")
}
