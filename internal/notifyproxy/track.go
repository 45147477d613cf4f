// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/resource"
)

// EventType is one of the four long-lived notification categories:
// each gets its own persistent resource set and its own five-state
// machine, independent of the per-play Proxy state machine in proxy.go.
type EventType int

const (
	EventRingtone EventType = iota
	EventMissedCall
	EventAlarm
	EventGeneric
)

func (t EventType) String() string {
	switch t {
	case EventRingtone:
		return "ringtone"
	case EventMissedCall:
		return "missedcall"
	case EventAlarm:
		return "alarm"
	case EventGeneric:
		return "event"
	default:
		return "unknown"
	}
}

// TrackState is one of the Long-lived Track's five states:
// idle -> acquiring -> playing -> (stopped|releasing) -> idle.
type TrackState int

const (
	TrackIdle TrackState = iota
	TrackAcquiring
	TrackPlaying
	TrackStopped
	TrackReleasing
)

func (s TrackState) String() string {
	switch s {
	case TrackIdle:
		return "idle"
	case TrackAcquiring:
		return "acquiring"
	case TrackPlaying:
		return "playing"
	case TrackStopped:
		return "stopped"
	case TrackReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// seqnoBits sizes the rollover space of the notification-id sequence
// component: seqno rolls over modulo 2^SEQNO_BITS - 1, never being
// zero. The type tag occupies the high bits above it.
const seqnoBits = 24

const seqnoMask = (uint64(1) << seqnoBits) - 1

// NotificationID packs an EventType and a sequence number:
// `(type_bits << SEQNO_BITS) | seqno`.
func NotificationID(t EventType, seqno uint32) uint64 {
	return uint64(t)<<seqnoBits | uint64(seqno)&seqnoMask
}

// SplitNotificationID recovers the EventType and sequence number from a
// packed notification id.
func SplitNotificationID(id uint64) (EventType, uint32) {
	return EventType(id >> seqnoBits), uint32(id & seqnoMask)
}

// Track is one event type's persistent resource set: unlike
// a Proxy, which is created fresh per play, a Track is created once per
// event type and reused across overlapping play requests, tracked by a
// reference count so the underlying resource set is only released once
// every overlapping request has finished with it.
type Track struct {
	mu   sync.Mutex
	busy bool

	eventType  EventType
	className  string
	clientAddr string
	managerID  uint32
	mandatory  resource.Mask
	state      TrackState
	refcount   int
	nextSeqno  uint32

	manager *arbiter.Manager
}

// TrackConfig bundles the collaborators a Track needs.
type TrackConfig struct {
	EventType  EventType
	ClassName  string
	ClientAddr string
	Manager    *arbiter.Manager
}

// NewTrack builds a Track in TrackIdle. The underlying resource set is not
// registered until the first play request arrives (Acquire), matching the
// C source's lazy set creation.
func NewTrack(cfg TrackConfig) *Track {
	return &Track{
		eventType:  cfg.EventType,
		className:  cfg.ClassName,
		clientAddr: cfg.ClientAddr,
		manager:    cfg.Manager,
		state:      TrackIdle,
	}
}

// State returns the track's current state.
func (t *Track) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// nextID allocates the next notification id for this track's event type,
// skipping the all-zero sequence value.
func (t *Track) nextID() uint64 {
	t.nextSeqno++
	if uint64(t.nextSeqno)&seqnoMask == 0 {
		t.nextSeqno = 1
	}
	return NotificationID(t.eventType, t.nextSeqno)
}

// Acquire registers a play request against this track. The first
// concurrent request (refcount 0 -> 1) drives idle -> acquiring ->
// registers and acquires the underlying resource set; later overlapping
// requests (refcount > 0) just bump the count and get a fresh
// notification id of their own, matching "a play-request reference count is tracked so
// overlapping client requests don't release prematurely".
func (t *Track) Acquire(ctx context.Context, mandatory, optional resource.Mask) (uint64, error) {
	t.mu.Lock()
	if t.busy {
		t.mu.Unlock()
		return 0, errorkinds.New(errorkinds.KindConsistencyError, "notifyproxy.Track.Acquire", "reentrant dispatch")
	}
	t.busy = true
	defer func() {
		t.mu.Lock()
		t.busy = false
		t.mu.Unlock()
	}()

	if t.refcount > 0 {
		t.refcount++
		id := t.nextID()
		t.mu.Unlock()
		return id, nil
	}
	t.mu.Unlock()

	managerID, err := t.manager.Register(ctx, fmt.Sprintf("track-%s", t.eventType), t.clientAddr, 0, t.className, 0, mandatory, optional, nil)
	if err != nil {
		return 0, errorkinds.Wrap(errorkinds.KindPermissionDenied, "notifyproxy.Track.Acquire", "register track resource set", err)
	}

	t.mu.Lock()
	t.managerID = managerID
	t.mandatory = mandatory
	t.state = TrackAcquiring
	t.mu.Unlock()

	if err := t.manager.Acquire(ctx, managerID, 0); err != nil {
		t.mu.Lock()
		t.state = TrackIdle
		t.mu.Unlock()
		_ = t.manager.Unregister(ctx, managerID)
		return 0, errorkinds.Wrap(errorkinds.KindPermissionDenied, "notifyproxy.Track.Acquire", "acquire track resource set", err)
	}

	t.mu.Lock()
	t.state = TrackPlaying
	t.refcount = 1
	id := t.nextID()
	t.mu.Unlock()
	return id, nil
}

// OnGrant transitions acquiring -> playing once the arbitration manager's
// grant watcher fires for this track's manager id (mirrors the Proxy's
// EventResourceGrant handling, but for the persistent track).
func (t *Track) OnGrant() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TrackAcquiring {
		t.state = TrackPlaying
	}
}

// Release drops one reference. Only when the count reaches zero does the
// track actually stop and release its resource set ("only when the count
// drops to zero is a stop allowed); otherwise it is a no-op
// bookkeeping decrement for an overlapping client's own stop.
func (t *Track) Release(ctx context.Context) error {
	t.mu.Lock()
	if t.refcount == 0 {
		t.mu.Unlock()
		return nil
	}
	t.refcount--
	if t.refcount > 0 {
		t.mu.Unlock()
		return nil
	}
	t.state = TrackReleasing
	managerID := t.managerID
	t.mu.Unlock()

	if err := t.manager.Release(ctx, managerID); err != nil {
		logging.Warn().Err(err).Str("event_type", t.eventType.String()).Msg("notifyproxy: track release failed")
	}
	if err := t.manager.Unregister(ctx, managerID); err != nil {
		logging.Warn().Err(err).Str("event_type", t.eventType.String()).Msg("notifyproxy: track unregister failed")
	}

	t.mu.Lock()
	t.state = TrackIdle
	t.managerID = 0
	t.mu.Unlock()
	return nil
}

// Stopped marks the track's last request as explicitly stopped without
// dropping the refcount to zero yet (e.g. the backend reported the media
// finished on its own while other clients still hold a reference).
func (t *Track) Stopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TrackPlaying {
		t.state = TrackStopped
	}
}

// Refcount reports the live overlapping-request count, for introspection.
func (t *Track) Refcount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refcount
}
