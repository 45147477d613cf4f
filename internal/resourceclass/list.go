// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resourceclass

import (
	"sort"
	"sync"

	"github.com/resarbiter/resourced/internal/resource"
)

// Member is the minimal view a resourceclass.MemberList needs of whatever
// the caller is ordering; internal/resourceset's Set satisfies it without
// resourceclass importing resourceset (avoiding an import cycle: Set needs
// Priority to compute its own class_link_priority).
type Member struct {
	ManagerID uint32
	Priority  Priority
}

// MemberList is one class's membership list, kept strictly sorted by
// class_link_priority. Insert and Remove are the only legal
// mutations; re-priority is always unlink-then-reinsert, never an
// in-place update.
type MemberList struct {
	mu      sync.Mutex
	members []Member
}

// Insert places managerID into the list at the position dictated by
// priority, ahead of the first existing entry with strictly greater
// priority.
func (l *MemberList) Insert(managerID uint32, priority Priority) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := sort.Search(len(l.members), func(i int) bool {
		return l.members[i].Priority > priority
	})
	l.members = append(l.members, Member{})
	copy(l.members[idx+1:], l.members[idx:])
	l.members[idx] = Member{ManagerID: managerID, Priority: priority}
}

// Remove unlinks managerID from the list. A no-op if managerID isn't a
// member.
func (l *MemberList) Remove(managerID uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, m := range l.members {
		if m.ManagerID == managerID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			return
		}
	}
}

// Reorder is Remove followed by Insert under a single lock, the "unlink +
// relink" the only legal way to update a member's priority.
func (l *MemberList) Reorder(managerID uint32, newPriority Priority) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, m := range l.members {
		if m.ManagerID == managerID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			break
		}
	}
	idx := sort.Search(len(l.members), func(i int) bool {
		return l.members[i].Priority > newPriority
	})
	l.members = append(l.members, Member{})
	copy(l.members[idx+1:], l.members[idx:])
	l.members[idx] = Member{ManagerID: managerID, Priority: newPriority}
}

// Members returns a snapshot of the list in ascending-priority order (the
// head is the current "winner").
func (l *MemberList) Members() []Member {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Member, len(l.members))
	copy(out, l.members)
	return out
}

// Len reports the current member count.
func (l *MemberList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.members)
}

// Directory is the static class table (resource.All) paired with one live
// MemberList per class, backing the leaves-first iteration the
// built-in arbitrator walks.
type Directory struct {
	classes []resource.Class
	lists   map[string]*MemberList
}

// NewDirectory builds a Directory over the fixed class table, one empty
// MemberList per class.
func NewDirectory() *Directory {
	classes := resource.All()
	lists := make(map[string]*MemberList, len(classes))
	for _, c := range classes {
		lists[c.Name] = &MemberList{}
	}
	return &Directory{classes: classes, lists: lists}
}

// Find looks up a class descriptor by name.
func (d *Directory) Find(name string) (resource.Class, bool) {
	for _, c := range d.classes {
		if c.Name == name {
			return c, true
		}
	}
	return resource.Class{}, false
}

// Scan returns the class directory leaves-first, i.e. in fixed table
// declaration order.
func (d *Directory) Scan() []resource.Class {
	out := make([]resource.Class, len(d.classes))
	copy(out, d.classes)
	return out
}

// List returns the live membership list for a class name, or nil if the
// class doesn't exist.
func (d *Directory) List(className string) *MemberList {
	return d.lists[className]
}
