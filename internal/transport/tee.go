// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import (
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	ws "github.com/resarbiter/resourced/internal/websocket"
)

// Tee mirrors grant, advice and release-request notifications onto the
// websocket hub while delegating delivery to the primary bus, so
// dashboard clients observe the same grant/advice stream bus clients
// receive. Registered and proxy notifications go to the primary bus only.
// Hub broadcast is fire-and-forget; only the primary's error is reported.
type Tee struct {
	Bus
	hub *ws.Hub
}

// NewTee wraps primary so notifications are also broadcast on hub.
func NewTee(primary Bus, hub *ws.Hub) *Tee {
	return &Tee{Bus: primary, hub: hub}
}

func (t *Tee) SendGrant(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	t.hub.BroadcastJSON("grant", map[string]interface{}{
		"manager_id": managerID,
		"value":      value.String(),
	})
	metrics.WebSocketMessagesSent.Inc()
	return t.Bus.SendGrant(clientAddr, managerID, reqno, value)
}

func (t *Tee) SendAdvice(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	t.hub.BroadcastJSON("advice", map[string]interface{}{
		"manager_id": managerID,
		"value":      value.String(),
	})
	metrics.WebSocketMessagesSent.Inc()
	return t.Bus.SendAdvice(clientAddr, managerID, reqno, value)
}

func (t *Tee) SendReleaseRequest(clientAddr string, managerID uint32) error {
	t.hub.BroadcastJSON("release_request", map[string]interface{}{
		"manager_id": managerID,
	})
	metrics.WebSocketMessagesSent.Inc()
	return t.Bus.SendReleaseRequest(clientAddr, managerID)
}
