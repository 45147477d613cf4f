// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package resourceset implements the per-client Resource Set and its
// pending-value output queues.
package resourceset

import (
	"fmt"
	"strings"
)

// ModeFlags is the bitset of per-set behavior modifiers.
type ModeFlags uint8

const (
	// AlwaysReply: every successful operation additionally enqueues a
	// post-transaction grant notification, even when the operation
	// produced no effective change.
	AlwaysReply ModeFlags = 1 << iota
	// AutoRelease: when policy revokes (block flips true), the manager
	// does not send the client a release request. No self-release is
	// scheduled either: the set stays acquired until the client releases
	// it.
	AutoRelease
)

func (f ModeFlags) AlwaysReplyEnabled() bool { return f&AlwaysReply != 0 }
func (f ModeFlags) AutoReleaseEnabled() bool { return f&AutoRelease != 0 }

// ParseModeFlags accepts either a free-text comma-separated keyword list
// ("always_reply,auto_release") or decimal numeric bitmask string, the
// same dual input the bus protocol has always accepted for clients
// that send human-readable flags instead of a raw bitmask.
func ParseModeFlags(s string) (ModeFlags, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if isAllDigits(s) {
		var n uint64
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return 0, fmt.Errorf("resourceset: invalid numeric mode flags %q: %w", s, err)
		}
		return ModeFlags(n), nil
	}

	var flags ModeFlags
	for _, kw := range strings.Split(s, ",") {
		switch strings.TrimSpace(kw) {
		case "always_reply":
			flags |= AlwaysReply
		case "auto_release":
			flags |= AutoRelease
		case "":
			// tolerate trailing commas
		default:
			return 0, fmt.Errorf("resourceset: unknown mode flag keyword %q", kw)
		}
	}
	return flags, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
