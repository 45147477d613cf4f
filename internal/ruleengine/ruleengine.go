// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package ruleengine is the consumed goal-oriented rule
// engine API. The arbitration core queries it as an oracle
// for every policy decision; this package never defines rule *contents*
// — only the interface, a gobreaker-wrapped client for
// an external backend, and the glue that falls back to the built-in
// arbitrator (internal/arbiter) when the external backend is
// absent or its circuit is open.
package ruleengine

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
)

// FieldType mirrors the row field types the rule engine's result rows
// carry.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldDouble
)

// Field is one name/type/value triplet in a result row.
type Field struct {
	Name   string
	Type   FieldType
	String string
	Int    int64
	Double float64
}

// Row is one row of a rule result, looked up by field name.
type Row []Field

// Get returns the named field, and whether it was present.
func (r Row) Get(name string) (Field, bool) {
	for _, f := range r {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Result is the list-of-rows a rule evaluation produces.
type Result []Row

// Status mirrors rule_eval's return convention: >0 success, 0 logical
// failure, <0 error.
type Status int

// Engine is the abstract rule-engine API.
type Engine interface {
	// Find resolves a goal name + arity to an opaque rule id, or an error
	// if no such rule exists (rule_find).
	Find(ctx context.Context, name string, arity int) (ruleID int, err error)
	// Eval invokes a previously-found rule with positional args and
	// returns its result rows plus the success/failure/error Status
	// (rule_eval).
	Eval(ctx context.Context, ruleID int, args []factstore.Value) (Result, Status, error)
}

// ResourceRequest evaluates the `resource_request(operation, manager_id,
// client_name, client_id)` rule. It is side-effectful: the
// rule is expected to write granted/advice fact-store fields the
// arbitration manager's watchers pick up, not to return them directly.
func ResourceRequest(ctx context.Context, e Engine, operation string, managerID uint32, clientName, clientID string) (Status, error) {
	id, err := e.Find(ctx, "resource_request", 4)
	if err != nil {
		return 0, fmt.Errorf("ruleengine: resource_request not found: %w", err)
	}
	args := []factstore.Value{
		factstore.StringValue(operation),
		factstore.UintValue(uint64(managerID)),
		factstore.StringValue(clientName),
		factstore.StringValue(clientID),
	}
	_, status, err := e.Eval(ctx, id, args)
	return status, err
}

// ResourceClassRequest evaluates `resource_class_request(class, mandatory,
// optional) -> {mandatory, optional}`, the class validator that may
// narrow `optional`.
func ResourceClassRequest(ctx context.Context, e Engine, class string, mandatory, optional uint32) (newMandatory, newOptional uint32, narrowed bool, err error) {
	id, err := e.Find(ctx, "resource_class_request", 3)
	if err != nil {
		// No validator rule configured: pass the request through
		// unchanged rather than failing registration/update.
		return mandatory, optional, false, nil
	}
	args := []factstore.Value{
		factstore.StringValue(class),
		factstore.UintValue(uint64(mandatory)),
		factstore.UintValue(uint64(optional)),
	}
	result, status, err := e.Eval(ctx, id, args)
	if err != nil || status <= 0 || len(result) == 0 {
		return mandatory, optional, false, err
	}
	row := result[0]
	newMandatory, newOptional = mandatory, optional
	if f, ok := row.Get("mandatory"); ok {
		newMandatory = uint32(f.Int)
	}
	if f, ok := row.Get("optional"); ok {
		newOptional = uint32(f.Int)
		narrowed = newOptional != optional
	}
	return newMandatory, newOptional, narrowed, nil
}

// NotificationRequest evaluates `notification_request(event_name) ->
// {type, event, error, mandatory, optional, allow_multiple, proclaimer}`.
type NotificationRequestResult struct {
	Type          string
	Event         string
	Error         string
	Mandatory     uint32
	Optional      uint32
	AllowMultiple bool
	Proclaimer    bool
}

func NotificationRequest(ctx context.Context, e Engine, eventName string) (NotificationRequestResult, Status, error) {
	var out NotificationRequestResult
	id, err := e.Find(ctx, "notification_request", 1)
	if err != nil {
		return out, 0, fmt.Errorf("ruleengine: notification_request not found: %w", err)
	}
	result, status, err := e.Eval(ctx, id, []factstore.Value{factstore.StringValue(eventName)})
	if err != nil || status <= 0 || len(result) == 0 {
		return out, status, err
	}
	row := result[0]
	if f, ok := row.Get("type"); ok {
		out.Type = f.String
	}
	if f, ok := row.Get("event"); ok {
		out.Event = f.String
	}
	if f, ok := row.Get("error"); ok {
		out.Error = f.String
	}
	if f, ok := row.Get("mandatory"); ok {
		out.Mandatory = uint32(f.Int)
	}
	if f, ok := row.Get("optional"); ok {
		out.Optional = uint32(f.Int)
	}
	if f, ok := row.Get("allow_multiple"); ok {
		out.AllowMultiple = f.Int != 0
	}
	if f, ok := row.Get("proclaimer"); ok {
		out.Proclaimer = f.Int != 0
	}
	return out, status, nil
}

// NotificationEvents evaluates `notification_events(type) -> [name, ...]`.
func NotificationEvents(ctx context.Context, e Engine, eventType string) ([]string, error) {
	id, err := e.Find(ctx, "notification_events", 1)
	if err != nil {
		return nil, fmt.Errorf("ruleengine: notification_events not found: %w", err)
	}
	result, status, err := e.Eval(ctx, id, []factstore.Value{factstore.StringValue(eventType)})
	if err != nil || status <= 0 {
		return nil, err
	}
	names := make([]string, 0, len(result))
	for _, row := range result {
		if f, ok := row.Get("name"); ok {
			names = append(names, f.String)
		}
	}
	return names, nil
}

// NotificationPlayShort evaluates `notification_play_short(type) ->
// play:int`, used to classify a proxy's play mode.
func NotificationPlayShort(ctx context.Context, e Engine, eventType string) (bool, error) {
	id, err := e.Find(ctx, "notification_play_short", 1)
	if err != nil {
		return false, nil // no rule configured: default to LONG
	}
	result, status, err := e.Eval(ctx, id, []factstore.Value{factstore.StringValue(eventType)})
	if err != nil || status <= 0 || len(result) == 0 {
		return false, err
	}
	f, ok := result[0].Get("play")
	return ok && f.Int != 0, nil
}

// CircuitBreakerConfig configures the gobreaker wrapper around an
// external rule backend.
type CircuitBreakerConfig struct {
	Name                string
	MaxRequests         uint32
	ConsecutiveFailures uint32
}

// BreakingEngine wraps an Engine with a gobreaker circuit breaker: once
// ConsecutiveFailures calls to Eval fail in a row, the breaker opens and
// every subsequent call fails fast with gobreaker.ErrOpenState until the
// breaker resets, instead of hanging the single-threaded arbitration loop
// on a wedged external rule backend.
type BreakingEngine struct {
	inner Engine
	cb    *gobreaker.CircuitBreaker[Result]
}

// NewBreakingEngine wraps inner with a circuit breaker per cfg.
func NewBreakingEngine(inner Engine, cfg CircuitBreakerConfig) *BreakingEngine {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("ruleengine: circuit breaker state change")
			metrics.CircuitBreakerState.Set(float64(to))
		},
	}
	return &BreakingEngine{inner: inner, cb: gobreaker.NewCircuitBreaker[Result](st)}
}

func (b *BreakingEngine) Find(ctx context.Context, name string, arity int) (int, error) {
	return b.inner.Find(ctx, name, arity)
}

func (b *BreakingEngine) Eval(ctx context.Context, ruleID int, args []factstore.Value) (Result, Status, error) {
	var status Status
	result, err := b.cb.Execute(func() (Result, error) {
		r, s, evalErr := b.inner.Eval(ctx, ruleID, args)
		status = s
		if evalErr != nil {
			return nil, evalErr
		}
		if s < 0 {
			return nil, fmt.Errorf("ruleengine: rule %d returned error status", ruleID)
		}
		return r, nil
	})
	if err != nil {
		return nil, status, err
	}
	return result, status, nil
}
