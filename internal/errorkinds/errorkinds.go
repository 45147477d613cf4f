// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package errorkinds defines the typed error taxonomy the arbitration core
// uses instead of bare integer error codes.
//
// Every package that needs to report a policy-relevant failure wraps the
// underlying cause in an *ArbError via New, so callers can errors.As to the
// Kind without string matching, and the arbitration manager can decide
// whether a failure is surfaced to the client, recovered locally, or fatal
// at process startup.
package errorkinds

import (
	"errors"
	"fmt"
)

// Kind classifies an ArbError.
type Kind int

const (
	// KindInvalidArgument: malformed message or a null required field.
	// Propagation: immediate reply to caller, no state change.
	KindInvalidArgument Kind = iota
	// KindNotFound: unknown manager_id, unknown event, unknown class.
	// Propagation: reply with a specific error; ignore the fact watcher.
	KindNotFound
	// KindPermissionDenied: authorization rejected, or a class disallows
	// the requested mandatory mask. Propagation: reply; destroy the
	// tentative set.
	KindPermissionDenied
	// KindConsistencyError: a hash-table lookup of our own record failed.
	// Propagation: log, reply with an EUCLEAN-equivalent, abort the
	// operation; never corrupt neighbouring state.
	KindConsistencyError
	// KindTransportFailure: the transport reported a send failure.
	// Propagation: log and continue; the fact store stays authoritative.
	KindTransportFailure
	// KindRuleFailure: the rule engine returned <= 0.
	// Propagation: treated as a policy rejection; reply with the rule's
	// error string when one was provided.
	KindRuleFailure
	// KindTimeout: a play/stop timer fired.
	// Propagation: drives the owning state machine, never raised to a
	// caller directly.
	KindTimeout
	// KindFatal: loss of the transport bus at startup, failure to own the
	// service name, or a missing mandatory imported method. Aborts the
	// process; never returned for a runtime transport hiccup.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConsistencyError:
		return "consistency_error"
	case KindTransportFailure:
		return "transport_failure"
	case KindRuleFailure:
		return "rule_failure"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ArbError is the typed error every arbitration-core package returns for a
// policy-relevant failure. Kind lets call sites branch on category without
// matching error strings; Cause is the wrapped underlying error, if any.
type ArbError struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "arbiter.Acquire"
	Message string
	Cause   error
}

func (e *ArbError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ArbError) Unwrap() error { return e.Cause }

// New builds an ArbError carrying kind, the failing operation name, and a
// human-readable message.
func New(kind Kind, op, message string) *ArbError {
	return &ArbError{Kind: kind, Op: op, Message: message}
}

// Wrap builds an ArbError around an existing cause.
func Wrap(kind Kind, op, message string, cause error) *ArbError {
	return &ArbError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err is an ArbError of the given kind.
func Is(err error, kind Kind) bool {
	var ae *ArbError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an ArbError, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var ae *ArbError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
