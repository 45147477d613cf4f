// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resourceclass

import (
	"fmt"

	"github.com/resarbiter/resourced/internal/resource"
)

// Override adjusts one built-in class's allowed/shared masks and
// public/sharing flags without recompiling. It
// mirrors internal/config's ClassOverride field-for-field; this package
// defines its own copy so resourceclass never has to import config.
type Override struct {
	Allowed []string
	Shared  []string
	Public  *bool
	Share   *bool
}

// NewDirectoryWithOverrides builds a Directory over the fixed class
// table, applying any per-class overrides before the class's MemberList
// is created. An override naming an unknown class or resource is an
// error — config.Validate is expected to have already caught this, so a
// failure here indicates the caller skipped validation.
func NewDirectoryWithOverrides(overrides map[string]Override) (*Directory, error) {
	classes := resource.All()
	byName := make(map[string]int, len(classes))
	for i, c := range classes {
		byName[c.Name] = i
	}

	for name, o := range overrides {
		idx, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("resourceclass: override names unknown class %q", name)
		}
		c := classes[idx]
		if len(o.Allowed) > 0 {
			mask, err := parseMaskNames(o.Allowed)
			if err != nil {
				return nil, fmt.Errorf("resourceclass: class %q allowed override: %w", name, err)
			}
			c.AllowedMask = mask
		}
		if len(o.Shared) > 0 {
			mask, err := parseMaskNames(o.Shared)
			if err != nil {
				return nil, fmt.Errorf("resourceclass: class %q shared override: %w", name, err)
			}
			c.SharedMask = mask
		}
		if o.Public != nil {
			if *o.Public {
				c.Flags |= resource.ClassPublic
			} else {
				c.Flags &^= resource.ClassPublic
			}
		}
		if o.Share != nil {
			if *o.Share {
				c.Flags |= resource.ClassSharing
			} else {
				c.Flags &^= resource.ClassSharing
			}
		}
		classes[idx] = c
	}

	lists := make(map[string]*MemberList, len(classes))
	for _, c := range classes {
		lists[c.Name] = &MemberList{}
	}
	return &Directory{classes: classes, lists: lists}, nil
}

func parseMaskNames(names []string) (resource.Mask, error) {
	var m resource.Mask
	for _, n := range names {
		bit, err := resource.ParseName(n)
		if err != nil {
			return 0, err
		}
		m |= bit
	}
	return m, nil
}
