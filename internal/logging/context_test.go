// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestScopeRoundTrip(t *testing.T) {
	ctx := context.Background()

	if s := ScopeFrom(ctx); s != (Scope{}) {
		t.Fatalf("empty context should yield zero Scope, got %+v", s)
	}

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithSet(ctx, 7, "player")
	ctx = ContextWithTx(ctx, 42)

	s := ScopeFrom(ctx)
	want := Scope{RequestID: "req-1", ManagerID: 7, Class: "player", TxID: 42}
	if s != want {
		t.Errorf("ScopeFrom = %+v, want %+v", s, want)
	}
}

func TestScopeFieldsAccumulate(t *testing.T) {
	// Later annotations must not erase earlier ones.
	ctx := ContextWithSet(context.Background(), 3, "ringtone")
	ctx = ContextWithTx(ctx, 9)

	s := ScopeFrom(ctx)
	if s.ManagerID != 3 || s.Class != "ringtone" || s.TxID != 9 {
		t.Errorf("annotations did not accumulate: %+v", s)
	}
}

func TestCtxEmitsScopeFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithSet(context.Background(), 11, "call")
	ctx = ContextWithTx(ctx, 5)
	Ctx(ctx).Info().Msg("resolved")

	out := buf.String()
	for _, want := range []string{`"manager_id":11`, `"class":"call"`, `"txid":5`, "resolved"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}

func TestCtxOmitsZeroFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Ctx(context.Background()).Info().Msg("bare")

	out := buf.String()
	for _, absent := range []string{"manager_id", "txid", "class", "request_id"} {
		if strings.Contains(out, absent) {
			t.Errorf("zero field %q should be omitted: %s", absent, out)
		}
	}
}

func TestNewRequestIDUnique(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == "" || a == b {
		t.Errorf("NewRequestID() returned %q then %q", a, b)
	}
}
