// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package notifyproxy implements the Notification Proxy state
// machine that bridges one client-initiated play through resource
// arbitration to a backend renderer, and the Long-lived Track
// that serializes overlapping ringtone/missed-call/alarm/event requests
// onto one persistent resource set per event type.
//
// Both state machines dispatch through an exhaustive switch over
// (state, event) rather than a function-pointer
// grid, so a missing transition is a compile-time gap instead of a
// silent no-op. Each machine is guarded by a busy flag for the duration
// of one event's processing: a reentrant dispatch — an event
// arriving from inside another event's handling, the way a synchronous
// backend callback could — is logged and rejected without a state
// change, rather than corrupting the machine.
//
// Registry (registry.go) is the dual id/client-address hash table for
// Proxy objects; Track (track.go) is the persistent, refcounted resource
// set reused across overlapping ringtone/missedcall/alarm/event
// requests, with notification ids packed as
// (type_bits << SEQNO_BITS) | seqno.
package notifyproxy
