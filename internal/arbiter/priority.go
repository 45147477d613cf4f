// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"math"

	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/resourceset"
)

// classPriority computes the composite class_link_priority for a set:
// stamp dominates, then acquire-state, then share-eligibility,
// then the set's audio role relative priority, if it has declared one.
//
// acquiring and shareEligible are passed in rather than derived from s
// directly because callers recompute this mid-transition (e.g. Acquire
// flips s.Request before the set is relinked), so the caller always knows
// the post-change values before the assignment that follows.
func classPriority(s *resourceset.Set, acquiring, shareEligible bool) resourceclass.Priority {
	stampInverse := uint32(math.MaxUint32) - s.Stamp

	var roleRelPrio uint32
	for _, spec := range s.Specs {
		if spec.Kind == resource.SpecAudio && spec.Role != "" {
			roleRelPrio = resource.RolePriority(spec.Role)
			break
		}
	}

	return resourceclass.Compose(stampInverse, acquiring, shareEligible, roleRelPrio)
}
