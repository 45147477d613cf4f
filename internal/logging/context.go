// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scope is the set of identifiers a log event should carry for the
// operation currently in flight: the admin-API request id, and the
// arbitration coordinates (manager_id, class, txid) once the operation
// has resolved which resource set it concerns. Zero-valued fields are
// not emitted.
type Scope struct {
	RequestID string
	ManagerID uint32
	Class     string
	TxID      uint64
}

type scopeKey struct{}

// NewRequestID mints an id for one inbound admin-API request.
func NewRequestID() string {
	return uuid.New().String()
}

// WithScope attaches a Scope to ctx, replacing any previous one.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the Scope attached to ctx, or a zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// ContextWithRequestID records the admin-API request id on the context's
// Scope, preserving any arbitration coordinates already present.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	s := ScopeFrom(ctx)
	s.RequestID = id
	return WithScope(ctx, s)
}

// ContextWithSet records which resource set the operation has resolved
// to, so every later log line in the call chain carries it.
func ContextWithSet(ctx context.Context, managerID uint32, class string) context.Context {
	s := ScopeFrom(ctx)
	s.ManagerID = managerID
	s.Class = class
	return WithScope(ctx, s)
}

// ContextWithTx records the transaction the operation is batched under.
func ContextWithTx(ctx context.Context, txid uint64) context.Context {
	s := ScopeFrom(ctx)
	s.TxID = txid
	return WithScope(ctx, s)
}

// Ctx returns a logger carrying every non-zero Scope field from ctx.
//
//	logging.Ctx(ctx).Info().Msg("acquire resolved")
//	// {"level":"info","manager_id":7,"class":"player","txid":42,...}
func Ctx(ctx context.Context) *zerolog.Logger {
	s := ScopeFrom(ctx)
	lc := Logger().With()
	if s.RequestID != "" {
		lc = lc.Str(FieldRequestID, s.RequestID)
	}
	if s.ManagerID != 0 {
		lc = lc.Uint32(FieldManagerID, s.ManagerID)
	}
	if s.Class != "" {
		lc = lc.Str(FieldClass, s.Class)
	}
	if s.TxID != 0 {
		lc = lc.Uint64(FieldTxID, s.TxID)
	}
	logger := lc.Logger()
	return &logger
}
