// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package ruleengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/resarbiter/resourced/internal/factstore"
)

// RuleFunc is an in-process rule implementation: given positional args,
// it returns result rows and a Status.
type RuleFunc func(ctx context.Context, args []FieldArg) (Result, Status, error)

// FieldArg is the argument form Eval passes to a RuleFunc; it mirrors
// factstore.Value's tag but lives in this package to avoid RuleFunc
// authors needing to import factstore just to read an argument.
type FieldArg struct {
	String string
	Int    int64
	Double float64
}

type ruleKey struct {
	name  string
	arity int
}

// InProcess is a rule engine whose rules are ordinary Go functions
// registered in-process, for installations that don't run an external
// rule backend (config.RuleEngineConfig). Unregistered goals return a "not found"
// error from Find so callers (internal/ruleengine helpers above) fall
// through to their documented defaults, which is how the built-in
// arbitrator ends up driving policy when no rule for
// `resource_request` is registered.
type InProcess struct {
	mu    sync.RWMutex
	rules map[ruleKey]RuleFunc
	ids   []ruleKey
}

// NewInProcess builds an empty in-process rule engine.
func NewInProcess() *InProcess {
	return &InProcess{rules: make(map[ruleKey]RuleFunc)}
}

// Register installs fn as the implementation of name/arity, returning its
// rule id for later direct use in tests.
func (p *InProcess) Register(name string, arity int, fn RuleFunc) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := ruleKey{name, arity}
	p.rules[k] = fn
	for i, existing := range p.ids {
		if existing == k {
			return i
		}
	}
	p.ids = append(p.ids, k)
	return len(p.ids) - 1
}

func (p *InProcess) Find(ctx context.Context, name string, arity int) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	k := ruleKey{name, arity}
	for i, existing := range p.ids {
		if existing == k {
			if _, ok := p.rules[k]; ok {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("ruleengine: no rule registered for %s/%d", name, arity)
}

func (p *InProcess) Eval(ctx context.Context, ruleID int, args []factstore.Value) (Result, Status, error) {
	p.mu.RLock()
	if ruleID < 0 || ruleID >= len(p.ids) {
		p.mu.RUnlock()
		return nil, -1, fmt.Errorf("ruleengine: invalid rule id %d", ruleID)
	}
	fn, ok := p.rules[p.ids[ruleID]]
	p.mu.RUnlock()
	if !ok {
		return nil, -1, fmt.Errorf("ruleengine: rule id %d has no implementation", ruleID)
	}

	fieldArgs := make([]FieldArg, len(args))
	for i, v := range args {
		fieldArgs[i] = FieldArg{String: v.String, Int: v.Int, Double: v.Double}
		if v.Kind == factstore.KindUint {
			fieldArgs[i].Int = int64(v.Uint)
		}
	}
	return fn(ctx, fieldArgs)
}
