// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package resourceclass implements the priority-ordered class
// membership lists resource sets are linked into.
//
// Membership is an ordered slice per class guarded by the class's own
// mutex. Re-priority is always unlink + re-insert, never an in-place
// update; the membership list is small enough (tens of sets) that a
// sorted slice outperforms a heap for this access pattern.
package resourceclass

// Bit widths for the packed composite priority:
//
//	[ stamp-inverse(32) | acquire-bit(1) | share-bit(1) | audio-role-relpri(16) ]
//
// The exact widths are an internal detail; only the shape is load-
// bearing: higher-order fields dominate, stamp first.
const (
	roleBits  = 16
	shareBits = 1
	stateBits = 1

	roleShift  = 0
	shareShift = roleShift + roleBits
	stateShift = shareShift + shareBits
	stampShift = stateShift + stateBits
)

// Priority is the packed composite class_link_priority.
// Ascending Priority order is the class list order: the set with the
// lowest Priority value is the current "winner" at the head of the list.
type Priority uint64

// Compose builds a class_link_priority from its four inputs, higher-order
// fields dominating in this order: stamp, acquire-state (acquiring beats
// released), share-eligibility (share-eligible ranks ahead), audio-role
// relative priority.
//
// Smaller Priority sorts first, so every component is encoded with
// "better" as the smaller value: stampInverse must already be inverted
// (fresher raw timestamp -> smaller input), acquiring contributes a 0
// bit where released contributes 1, share-eligible likewise, and the
// role's relative priority is inverted below.
func Compose(stampInverse uint32, acquiring, shareEligible bool, roleRelPrio uint32) Priority {
	acquireBit, shareBit := uint64(1), uint64(1)
	if acquiring {
		acquireBit = 0
	}
	if shareEligible {
		shareBit = 0
	}
	role := uint64(roleRelPrio) & (1<<roleBits - 1)
	invertedRole := (uint64(1)<<roleBits - 1) - role

	p := uint64(stampInverse)<<stampShift |
		acquireBit<<stateShift |
		shareBit<<shareShift |
		invertedRole<<roleShift
	return Priority(p)
}
