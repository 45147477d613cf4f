// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import "github.com/resarbiter/resourced/internal/resource"

// Bus is the full transport surface the daemon wires at startup: the
// inbound Dispatcher plus every outbound notification kind. Loopback
// satisfies it always; NATSTransport when built with the nats tag.
type Bus interface {
	Dispatcher
	SendGrant(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error
	SendAdvice(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error
	SendReleaseRequest(clientAddr string, managerID uint32) error
	SendRegistered(clientAddr string, managerID uint32, reqno uint64) error
	SendProxyStatus(clientAddr string, proxyID uint64, status string) error
	SendProxyFailed(clientAddr string, proxyID uint64, reason string) error
	SendProxyCompleted(clientAddr string, proxyID uint64) error
}
