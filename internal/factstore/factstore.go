// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package factstore is the daemon's tuple database — a named map from
// fact-name to an ordered list of typed tuple
// rows, with synchronous insert/remove/field watches. The arbitration
// core treats it purely as an oracle/mailbox: the rule engine (or any
// other actor) writes granted/advice/request/block columns and the
// arbitration manager's watchers react.
//
// This is the only concrete implementation the daemon needs (an
// in-memory store); a networked fact-store is explicitly out of scope
//, so there is exactly one Store behind the Store
// interface here rather than a driver-plugin layer.
package factstore

import (
	"sort"
	"sync"
)

// Value is the sum-type tagged value every fact field holds. Exactly one of the
// typed fields is meaningful, selected by Kind.
type Value struct {
	Kind    ValueKind
	String  string
	Int     int64
	Uint    uint64
	Double  float64
	// Time and Pointer are carried as opaque values (unix nanos / an
	// arbitrary identifier) since the core never interprets them, only
	// round-trips them for the rule engine.
	Time    int64
	Pointer any
}

type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindString
	KindInt
	KindUint
	KindDouble
	KindTime
	KindPointer
)

func StringValue(s string) Value  { return Value{Kind: KindString, String: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func UintValue(u uint64) Value    { return Value{Kind: KindUint, Uint: u} }
func DoubleValue(d float64) Value { return Value{Kind: KindDouble, Double: d} }
func TimeValue(t int64) Value     { return Value{Kind: KindTime, Time: t} }
func PointerValue(p any) Value    { return Value{Kind: KindPointer, Pointer: p} }

// Row is one entry in a named fact: a field-name to Value mapping. Rows
// are compared and selected field-by-field with type equality.
type Row map[string]Value

// Clone returns a field-for-field copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// matches reports whether row satisfies selector: every named field in
// selector must be present in row with an equal typed Value. An empty
// selector matches everything.
func (r Row) matches(selector Row) bool {
	for k, want := range selector {
		got, ok := r[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// EntryHandle identifies one row within one fact for destroy_entry.
type EntryHandle struct {
	Name  string
	Index int
}

// WatchEvent is insert or remove, the two fact-level watch triggers.
type WatchEvent int

const (
	EventInsert WatchEvent = iota
	EventRemove
)

// FactWatchFunc fires synchronously inside the mutating call.
type FactWatchFunc func(event WatchEvent, name string, row Row)

// FieldWatchFunc fires synchronously whenever fieldName changes on a row
// matching selector, receiving the row's prior and new value.
type FieldWatchFunc func(name string, row Row, fieldName string, oldValue, newValue Value)

type fieldWatch struct {
	selector  Row
	fieldName string
	fn        FieldWatchFunc
}

// Store is the in-memory fact store. All operations are synchronous and
// protected by a single mutex, matching the single-threaded cooperative
// event-loop model the daemon runs under. Watch callbacks run after the
// mutating call has released the lock, still on the caller's goroutine,
// so a callback may read or write the same Store.
type Store struct {
	mu          sync.Mutex
	facts       map[string][]Row
	factWatches map[string][]FactWatchFunc
	fieldWatches map[string][]fieldWatch
}

// New builds an empty fact store.
func New() *Store {
	return &Store{
		facts:        make(map[string][]Row),
		factWatches:  make(map[string][]FactWatchFunc),
		fieldWatches: make(map[string][]fieldWatch),
	}
}

// AddEntry appends a row to the named fact and fires insert watches.
func (s *Store) AddEntry(name string, fields Row) {
	s.mu.Lock()
	row := fields.Clone()
	s.facts[name] = append(s.facts[name], row)
	watches := append([]FactWatchFunc(nil), s.factWatches[name]...)
	s.mu.Unlock()

	for _, w := range watches {
		w(EventInsert, name, row)
	}
}

// DeleteEntry removes every row of name matching selector and fires
// remove watches for each.
func (s *Store) DeleteEntry(name string, selector Row) {
	s.mu.Lock()
	rows := s.facts[name]
	var removed []Row
	kept := rows[:0]
	for _, r := range rows {
		if r.matches(selector) {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	s.facts[name] = kept
	watches := append([]FactWatchFunc(nil), s.factWatches[name]...)
	s.mu.Unlock()

	for _, r := range removed {
		for _, w := range watches {
			w(EventRemove, name, r)
		}
	}
}

// UpdateEntry finds the first row of name matching selector and sets each
// field in update, firing any field watch whose selector/fieldName
// matches and whose value actually changed.
func (s *Store) UpdateEntry(name string, selector Row, update Row) bool {
	s.mu.Lock()
	rows := s.facts[name]
	idx := -1
	for i, r := range rows {
		if r.matches(selector) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	type change struct {
		fieldName          string
		oldValue, newValue Value
	}
	var changes []change
	row := rows[idx]
	for field, newVal := range update {
		oldVal := row[field]
		if oldVal != newVal {
			changes = append(changes, change{field, oldVal, newVal})
			row[field] = newVal
		}
	}
	rows[idx] = row

	var fired []func()
	for _, c := range changes {
		for _, fw := range s.fieldWatches[name] {
			if fw.fieldName != c.fieldName || !row.matches(fw.selector) {
				continue
			}
			fw := fw
			c := c
			fired = append(fired, func() { fw.fn(name, row, c.fieldName, c.oldValue, c.newValue) })
		}
	}
	s.mu.Unlock()

	for _, f := range fired {
		f()
	}
	return len(changes) > 0
}

// DestroyEntry removes one specific row by handle without firing a
// selector-based scan.
func (s *Store) DestroyEntry(h EntryHandle) {
	s.mu.Lock()
	rows := s.facts[h.Name]
	if h.Index < 0 || h.Index >= len(rows) {
		s.mu.Unlock()
		return
	}
	removed := rows[h.Index]
	s.facts[h.Name] = append(rows[:h.Index:h.Index], rows[h.Index+1:]...)
	watches := append([]FactWatchFunc(nil), s.factWatches[h.Name]...)
	s.mu.Unlock()

	for _, w := range watches {
		w(EventRemove, h.Name, removed)
	}
}

// GetEntry returns the first row of name matching selector.
func (s *Store) GetEntry(name string, selector Row) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.facts[name] {
		if r.matches(selector) {
			return r.Clone(), true
		}
	}
	return nil, false
}

// GetEntriesByName returns every row of name, in insertion order.
func (s *Store) GetEntriesByName(name string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.facts[name]
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// GetFieldByEntry reads one field off an already-fetched row.
func GetFieldByEntry(row Row, field string) (Value, bool) {
	v, ok := row[field]
	return v, ok
}

// GetFieldByName looks up a single field directly by fact name + selector,
// without the caller fetching the whole row first.
func (s *Store) GetFieldByName(name string, selector Row, field string) (Value, bool) {
	row, ok := s.GetEntry(name, selector)
	if !ok {
		return Value{}, false
	}
	return GetFieldByEntry(row, field)
}

// AddFactWatch registers fn to fire on every insert/remove of name.
func (s *Store) AddFactWatch(name string, fn FactWatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factWatches[name] = append(s.factWatches[name], fn)
}

// AddFieldWatch registers fn to fire whenever fieldName changes on a row
// of name matching selector.
func (s *Store) AddFieldWatch(name string, selector Row, fieldName string, fn FieldWatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldWatches[name] = append(s.fieldWatches[name], fieldWatch{selector, fieldName, fn})
}

// Dump returns a stable-sorted snapshot of every fact for debug rendering
// for wire-level tracing.
func (s *Store) Dump() map[string][]Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Row, len(s.facts))
	names := make([]string, 0, len(s.facts))
	for n := range s.facts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		rows := s.facts[n]
		cp := make([]Row, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		out[n] = cp
	}
	return out
}
