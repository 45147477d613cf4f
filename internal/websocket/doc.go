// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package websocket provides real-time push of arbitration events to connected clients.

This package broadcasts grant, advice, release-request, and
transaction-committed events to non-bus clients (debug consoles, web
dashboards) over gorilla/websocket, using a hub-client architecture for
efficient fan-out.

Key Components:

  - Hub: Central message broker that manages client connections and broadcasts
  - Client: Represents a single WebSocket connection with read/write goroutines
  - Message: Typed message structure for different event types

Architecture:

The package implements a hub-and-spoke pattern:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: Reads from WebSocket, handles pings
  - writePump: Writes to WebSocket, sends pongs

Message Types:

  - grant: a resource set's granted mask changed (manager_id, class, value, txid)
  - advice: a resource set's advice mask changed
  - release_request: policy asked a client to release
  - transaction_committed: a numbered transaction completed (txid, manager_ids)
  - error: error messages for debugging

Usage Example - Server:

	hub := websocket.NewHub()
	tree.AddBusService(serviceFunc(hub.RunWithContext))

	// Upgrade endpoint (see internal/api's /api/v1/ws handler):
	client := websocket.NewClient(hub, conn)
	hub.Register <- client
	client.Start()

	// Broadcasting from the notification path:
	hub.BroadcastGrant(managerID, "player", granted, txid)

Slow clients are disconnected rather than allowed to backpressure the
broadcast path: each client has a bounded send buffer, and a full buffer
drops the connection.

Shutdown:

RunWithContext drains on cancellation: every client's send channel is
closed, so its writePump sends an empty close frame, and the shutdown
reason derived from the context is logged. The hub returns without
waiting for those frames to be written.
*/
package websocket
