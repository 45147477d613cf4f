// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"testing"

	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/resourceset"
)

func newAcquiringSet(managerID uint32, className string, mandatory resource.Mask, stamp uint32) *resourceset.Set {
	s := resourceset.New(managerID, "client", "client:addr", 100+int(managerID), className, 0, stamp)
	s.Resources = resourceset.Resources{All: mandatory}
	s.Request = resourceset.RequestAcquire
	return s
}

func TestBuiltinArbitratorHigherPriorityClassWins(t *testing.T) {
	classes := resourceclass.NewDirectory()

	low := newAcquiringSet(1, "background", resource.AudioPlayback, 1)
	high := newAcquiringSet(2, "call", resource.AudioPlayback, 2)

	classes.List("background").Insert(1, resourceclass.Compose(^uint32(1), true, false, 0))
	classes.List("call").Insert(2, resourceclass.Compose(^uint32(2), true, false, 0))

	sets := map[uint32]*resourceset.Set{1: low, 2: high}
	lookup := func(id uint32) (*resourceset.Set, bool) { s, ok := sets[id]; return s, ok }

	a := newBuiltinArbitrator()
	decisions := a.run(classes, lookup)

	if decisions[2].Grant&resource.AudioPlayback == 0 {
		t.Fatalf("expected call to win audio_playback, got %+v", decisions[2])
	}
	if decisions[1].Grant&resource.AudioPlayback != 0 {
		t.Fatalf("expected background to lose audio_playback, got %+v", decisions[1])
	}
}

func TestBuiltinArbitratorSharingClassesBothGrant(t *testing.T) {
	classes := resourceclass.NewDirectory()

	a1 := newAcquiringSet(1, "proclaimer", resource.AudioPlayback, 1)
	a2 := newAcquiringSet(2, "event", resource.AudioPlayback, 2)

	classes.List("proclaimer").Insert(1, resourceclass.Compose(^uint32(1), true, true, 0))
	classes.List("event").Insert(2, resourceclass.Compose(^uint32(2), true, true, 0))

	sets := map[uint32]*resourceset.Set{1: a1, 2: a2}
	lookup := func(id uint32) (*resourceset.Set, bool) { s, ok := sets[id]; return s, ok }

	a := newBuiltinArbitrator()
	decisions := a.run(classes, lookup)

	if decisions[1].Grant&resource.AudioPlayback == 0 {
		t.Fatalf("expected proclaimer fake-grant of audio_playback, got %+v", decisions[1])
	}
	if decisions[2].Grant&resource.AudioPlayback == 0 {
		t.Fatalf("expected event (sharing class) to also hold audio_playback, got %+v", decisions[2])
	}
}

func TestBuiltinArbitratorMandatoryNotMetRollsBack(t *testing.T) {
	classes := resourceclass.NewDirectory()

	owner := newAcquiringSet(1, "call", resource.AllMedia, 1)
	classes.List("call").Insert(1, resourceclass.Compose(^uint32(1), true, false, 0))

	challenger := newAcquiringSet(2, "background", resource.VideoPlayback, 2)
	classes.List("background").Insert(2, resourceclass.Compose(^uint32(2), true, false, 0))

	sets := map[uint32]*resourceset.Set{1: owner, 2: challenger}
	lookup := func(id uint32) (*resourceset.Set, bool) { s, ok := sets[id]; return s, ok }

	a := newBuiltinArbitrator()
	decisions := a.run(classes, lookup)

	if decisions[2].Grant != resource.None {
		t.Fatalf("expected background's unmet mandatory video_playback to roll back to no grant, got %+v", decisions[2])
	}
	if decisions[1].Grant&resource.VideoPlayback == 0 {
		t.Fatalf("expected call's earlier-ranked video_playback grant to remain after rollback, got %+v", decisions[1])
	}
}
