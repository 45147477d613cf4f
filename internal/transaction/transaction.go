// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package transaction is the reference-counted, strictly ordered
// transaction coordinator that batches one external event's fan-out
// into a single commit.
//
// The table is a Go map plus a completion cursor that walks forward
// through consecutive completed transactions, so commits always land in
// creation order no matter which refcount hits zero first.
package transaction

import (
	"sync"

	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
)

// OnComplete is invoked exactly once per transaction, when every reference
// taken against it (and every earlier-numbered transaction) has released.
// ids is the set of manager_ids added to this transaction with
// AddResourceSet.
type OnComplete func(txid uint64, ids []uint32)

type txn struct {
	txid     uint64
	refcount int
	ids      map[uint32]struct{}
	onDone   OnComplete
	done     bool
}

// ErrNoTransaction is returned by Add/Ref/Unref when txid is unknown, the
// signal for callers to treat the change as "no batching, emit
// immediately".
var ErrNoTransaction = &noTransactionError{}

type noTransactionError struct{}

func (*noTransactionError) Error() string { return "transaction: unknown or already-completed txid" }

// Coordinator is the process-wide transaction table with explicit
// init/teardown from the top-level bootstrap. It is not
// safe to share across more than one event-loop goroutine without external
// synchronization beyond what Coordinator itself provides, matching the
// single-threaded cooperative model the daemon runs — the internal mutex exists
// to let admin-API introspection (internal/api) read transaction state
// concurrently with the arbitration loop, not to allow concurrent mutation
// from multiple loops.
type Coordinator struct {
	mu       sync.Mutex
	nextTxID uint64
	txns     map[uint64]*txn
	// completionCursor is the lowest txid that has not yet completed;
	// Unref walks forward from here so completion is strictly ascending
	// even when a later transaction's refcount reaches zero first.
	completionCursor uint64
}

// NewCoordinator builds an empty transaction table. firstTxID seeds the
// monotonically increasing counter (tests use a small value; production
// callers pass 1).
func NewCoordinator(firstTxID uint64) *Coordinator {
	return &Coordinator{
		nextTxID:         firstTxID,
		txns:             make(map[uint64]*txn),
		completionCursor: firstTxID,
	}
}

// Create opens a new transaction with refcount 1 (the creator's own
// reference, released by the creator via Unref) and returns its txid.
func (c *Coordinator) Create(onComplete OnComplete) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	txid := c.nextTxID
	c.nextTxID++
	c.txns[txid] = &txn{
		txid:     txid,
		refcount: 1,
		ids:      make(map[uint32]struct{}),
		onDone:   onComplete,
	}
	metrics.TransactionsOpen.Inc()
	return txid
}

// AddResourceSet records that managerID has a pending change under txid.
// Idempotent per (txid, managerID).
func (c *Coordinator) AddResourceSet(txid uint64, managerID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[txid]
	if !ok {
		return ErrNoTransaction
	}
	t.ids[managerID] = struct{}{}
	return nil
}

// Ref takes an additional reference on txid, e.g. because queue_change is
// about to enqueue a value under it and the transaction must not complete
// until that enqueue is visible.
func (c *Coordinator) Ref(txid uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[txid]
	if !ok {
		return ErrNoTransaction
	}
	t.refcount++
	return nil
}

// Unref releases a reference. When the refcount reaches zero the
// transaction is marked done; Unref then walks the completion cursor
// forward through consecutive done transactions, invoking each one's
// OnComplete and freeing it, never skipping ahead of a still-referenced
// earlier transaction.
func (c *Coordinator) Unref(txid uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[txid]
	if !ok {
		return ErrNoTransaction
	}
	t.refcount--
	if t.refcount < 0 {
		logging.Error().Uint64("txid", txid).Msg("transaction: refcount went negative")
		t.refcount = 0
	}
	if t.refcount == 0 {
		t.done = true
	}

	for {
		next, ok := c.txns[c.completionCursor]
		if !ok || !next.done {
			break
		}
		ids := make([]uint32, 0, len(next.ids))
		for id := range next.ids {
			ids = append(ids, id)
		}
		delete(c.txns, c.completionCursor)
		c.completionCursor++
		metrics.TransactionsOpen.Dec()
		if next.onDone != nil {
			next.onDone(next.txid, ids)
		}
	}
	return nil
}

// Pending reports how many transactions are currently open (awaiting
// completion). Used by admin introspection and tests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txns)
}
