// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resourceset

import (
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
)

// Field selects which of a Set's two output queues an operation targets.
type Field int

const (
	FieldGranted Field = iota
	FieldAdvice
)

func (f Field) String() string {
	if f == FieldAdvice {
		return "advice"
	}
	return "granted"
}

func (s *Set) fieldState(which Field) *FieldState {
	if which == FieldAdvice {
		return &s.Advice
	}
	return &s.Granted
}

// QueueChange is the pending-value algorithm's enqueue half: it always
// appends exactly one entry per invocation,
// recording the *current* in-fact-store value of the field and the reqno
// of the triggering request, if any. Callers take a transaction reference
// (transaction.Coordinator.Ref) before calling QueueChange and release it
// (Unref) after, so the owning transaction cannot complete before the
// enqueue is visible.
func (s *Set) QueueChange(txid uint64, reqno uint64, which Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.fieldState(which)
	fs.queue = append(fs.queue, QueueEntry{TxID: txid, ReqNo: reqno, Value: fs.Current})
	metrics.QueueDepth.WithLabelValues(which.String()).Inc()
}

// SetCurrent updates the in-fact-store mirror for a field (called by the
// arbitration manager's field watcher when the rule engine or another
// actor writes granted/advice). It does not itself enqueue a
// change; callers queue the change via QueueChange under the active
// transaction.
func (s *Set) SetCurrent(which Field, value resource.Mask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldState(which).Current = value
}

// SendQueuedChanges is the dequeue-and-send half, called
// exactly once per completing transaction per affected set, in ascending
// txid order. For each of the granted/advice queues it pops the head
// while head.txid <= txid:
//
//   - head.txid < txid is an out-of-order leftover: logged and discarded
//     (the monotone creation/completion
//     invariant means this branch should never actually fire in a correct
//     build; a hit here is treated as a bug, not a recoverable case).
//   - head.txid == txid: all such entries collapse into the latest one,
//     which keeps the reqno of an earlier entry when its own is zero. That
//     entry is emitted iff the caller explicitly asked for a reply
//     (reqno != 0) or the value differs from what was last sent. Grant
//     emission is additionally suppressed while the set is blocked. On a
//     successful send, LastSent is updated.
//
// This yields at-most-one notification per (set, field, transaction);
// monotone visibility; and idempotent commits.
func (s *Set) SendQueuedChanges(t Transport, txid uint64) {
	s.sendQueuedField(t, txid, FieldGranted)
	s.sendQueuedField(t, txid, FieldAdvice)
}

func (s *Set) sendQueuedField(t Transport, txid uint64, which Field) {
	s.mu.Lock()
	fs := s.fieldState(which)

	var pending *QueueEntry
	for len(fs.queue) > 0 && fs.queue[0].TxID <= txid {
		head := fs.queue[0]
		fs.queue = fs.queue[1:]
		metrics.QueueDepth.WithLabelValues(which.String()).Dec()

		if head.TxID < txid {
			logging.Error().
				Uint32("manager_id", s.ManagerID).
				Str("field", which.String()).
				Uint64("entry_txid", head.TxID).
				Uint64("commit_txid", txid).
				Msg("resourceset: deleting out-of-order transaction")
			metrics.OutOfOrderEntries.Inc()
			continue
		}

		if pending != nil && head.ReqNo == 0 {
			head.ReqNo = pending.ReqNo
		}
		pending = &head
	}

	var toSend []QueueEntry
	if pending != nil {
		emit := pending.ReqNo != 0 || pending.Value != fs.LastSent
		if which == FieldGranted && s.Block {
			emit = false
			metrics.GrantsSuppressed.Inc()
		}
		if emit {
			toSend = append(toSend, *pending)
			fs.LastSent = pending.Value
		}
	}
	clientAddr, managerID := s.ClientAddr, s.ManagerID
	s.mu.Unlock()

	for _, entry := range toSend {
		var err error
		if which == FieldGranted {
			err = t.SendGrant(clientAddr, managerID, entry.ReqNo, entry.Value)
		} else {
			err = t.SendAdvice(clientAddr, managerID, entry.ReqNo, entry.Value)
		}
		if err != nil {
			logging.Error().Err(err).
				Uint32("manager_id", managerID).
				Str("field", which.String()).
				Msg("resourceset: transport send failed")
		}
	}
}
