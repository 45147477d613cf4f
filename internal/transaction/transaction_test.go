// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transaction

import "testing"

// TestCompletionOrderIsAscending: a gap
// (an earlier transaction still referenced) must block a later
// transaction's commit even though the later one's own refcount already
// hit zero.
func TestCompletionOrderIsAscending(t *testing.T) {
	var order []uint64

	c := NewCoordinator(1)
	t1 := c.Create(func(txid uint64, ids []uint32) { order = append(order, txid) })
	t2 := c.Create(func(txid uint64, ids []uint32) { order = append(order, txid) })

	// Close T2 first; it must not complete because T1 is still open.
	if err := c.Unref(t2); err != nil {
		t.Fatalf("unref t2: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("t2 must not complete while t1 is open, got order=%v", order)
	}

	if err := c.Unref(t1); err != nil {
		t.Fatalf("unref t1: %v", err)
	}
	if len(order) != 2 || order[0] != t1 || order[1] != t2 {
		t.Fatalf("expected ascending completion order [t1,t2], got %v", order)
	}
}

func TestRefDelaysCompletion(t *testing.T) {
	completed := false
	c := NewCoordinator(1)
	txid := c.Create(func(uint64, []uint32) { completed = true })

	if err := c.Ref(txid); err != nil {
		t.Fatalf("ref: %v", err)
	}
	if err := c.Unref(txid); err != nil {
		t.Fatalf("unref 1: %v", err)
	}
	if completed {
		t.Fatal("transaction completed before every reference released")
	}
	if err := c.Unref(txid); err != nil {
		t.Fatalf("unref 2: %v", err)
	}
	if !completed {
		t.Fatal("transaction should have completed after final unref")
	}
}

func TestAddResourceSetIdempotent(t *testing.T) {
	var gotIDs []uint32
	c := NewCoordinator(1)
	txid := c.Create(func(_ uint64, ids []uint32) { gotIDs = ids })

	for i := 0; i < 3; i++ {
		if err := c.AddResourceSet(txid, 42); err != nil {
			t.Fatalf("add resource set: %v", err)
		}
	}
	_ = c.Unref(txid)

	if len(gotIDs) != 1 || gotIDs[0] != 42 {
		t.Fatalf("expected exactly one id 42, got %v", gotIDs)
	}
}

func TestUnknownTxidReturnsNoTransaction(t *testing.T) {
	c := NewCoordinator(1)
	if err := c.AddResourceSet(999, 1); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
	if err := c.Ref(999); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
	if err := c.Unref(999); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestPendingReflectsOpenTransactions(t *testing.T) {
	c := NewCoordinator(1)
	txid := c.Create(nil)
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", c.Pending())
	}
	_ = c.Unref(txid)
	if c.Pending() != 0 {
		t.Fatalf("expected 0 pending after completion, got %d", c.Pending())
	}
}
