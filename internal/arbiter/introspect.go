// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"sort"

	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceset"
)

// SetSnapshot is a read-only, race-safe copy of one live Resource Set's
// visible state, built for internal/api's introspection endpoints — callers
// outside this package may never hold a *resourceset.Set directly, since its
// fields are mutated under the set's own lock by the Manager's field
// watchers.
type SetSnapshot struct {
	ManagerID  uint32
	ClientID   string
	ClientAddr string
	ClientPID  int
	ClassName  string
	Request    string
	Block      bool
	All        resource.Mask
	Opt        resource.Mask
	Share      resource.Mask
	Granted    resource.Mask
	Advice     resource.Mask
}

func snapshotOf(s *resourceset.Set) SetSnapshot {
	return SetSnapshot{
		ManagerID:  s.ManagerID,
		ClientID:   s.ClientID,
		ClientAddr: s.ClientAddr,
		ClientPID:  s.ClientPID,
		ClassName:  s.ClassName,
		Request:    s.Request.String(),
		Block:      s.Block,
		All:        s.Resources.All,
		Opt:        s.Resources.Opt,
		Share:      s.Resources.Share,
		Granted:    s.Granted.Current,
		Advice:     s.Advice.Current,
	}
}

// Get returns a snapshot of one live set, for a single-resource
// introspection lookup (e.g. GET /sets/{managerID}).
func (m *Manager) Get(managerID uint32) (SetSnapshot, bool) {
	m.mu.Lock()
	s, ok := m.sets[managerID]
	m.mu.Unlock()
	if !ok {
		return SetSnapshot{}, false
	}
	return snapshotOf(s), true
}

// Snapshot returns every live set, ordered by manager id, for a full listing
// endpoint.
func (m *Manager) Snapshot() []SetSnapshot {
	m.mu.Lock()
	out := make([]SetSnapshot, 0, len(m.sets))
	for _, s := range m.sets {
		out = append(out, snapshotOf(s))
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ManagerID < out[j].ManagerID })
	return out
}

// ClassMembers returns the live membership order of one class's resource
// sets (the head being the current winner), or false if the class
// name is unknown.
func (m *Manager) ClassMembers(className string) ([]SetSnapshot, bool) {
	list := m.classes.List(className)
	if list == nil {
		return nil, false
	}
	members := list.Members()
	out := make([]SetSnapshot, 0, len(members))
	for _, mem := range members {
		if snap, ok := m.Get(mem.ManagerID); ok {
			out = append(out, snap)
		}
	}
	return out, true
}

// Classes lists every compiled-in class name, in declaration order.
func (m *Manager) Classes() []string {
	classes := m.classes.Scan()
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.Name
	}
	return out
}

// Len reports the number of live resource sets, for metrics/health checks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}
