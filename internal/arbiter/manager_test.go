// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/resourceset"
	"github.com/resarbiter/resourced/internal/ruleengine"
	"github.com/resarbiter/resourced/internal/transaction"
)

// sentMsg records one outbound notification for assertions.
type sentMsg struct {
	kind      string
	clientAddr string
	managerID uint32
	reqno     uint64
	value     resource.Mask
}

// fakeTransport satisfies resourceset.Transport and records every send.
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeTransport) record(m sentMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) SendGrant(addr string, id uint32, reqno uint64, v resource.Mask) error {
	return f.record(sentMsg{"grant", addr, id, reqno, v})
}

func (f *fakeTransport) SendAdvice(addr string, id uint32, reqno uint64, v resource.Mask) error {
	return f.record(sentMsg{"advice", addr, id, reqno, v})
}

func (f *fakeTransport) SendReleaseRequest(addr string, id uint32) error {
	return f.record(sentMsg{"release_request", addr, id, 0, resource.None})
}

func (f *fakeTransport) SendRegistered(addr string, id uint32, reqno uint64) error {
	return f.record(sentMsg{"registered", addr, id, reqno, resource.None})
}

func (f *fakeTransport) byKind(kind string) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	m := New(Config{
		Store:         factstore.New(),
		Classes:       resourceclass.NewDirectory(),
		Txns:          transaction.NewCoordinator(1),
		Transport:     ft,
		DefaultAccept: true,
	})
	return m, ft
}

func TestRegisterAcquireGrantsViaBuiltin(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli-1", "addr-1", 101, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id == 0 {
		t.Fatal("Register() returned zero manager id")
	}

	if err := m.Acquire(ctx, id, 7); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	grants := ft.byKind("grant")
	if len(grants) == 0 {
		t.Fatal("expected a grant notification after acquire")
	}
	last := grants[len(grants)-1]
	if last.value&resource.AudioPlayback == 0 {
		t.Errorf("grant value = %v, want audio_playback", last.value)
	}
	if last.clientAddr != "addr-1" {
		t.Errorf("grant delivered to %q, want addr-1", last.clientAddr)
	}

	snap, ok := m.Get(id)
	if !ok {
		t.Fatal("Get() should find the registered set")
	}
	if snap.Granted&resource.AudioPlayback == 0 {
		t.Errorf("snapshot granted = %v, want audio_playback", snap.Granted)
	}
}

func TestRegisterUnknownClassRejected(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Register(context.Background(), "cli", "addr", 1, "no-such-class", 0, resource.AudioPlayback, resource.None, nil)
	var ae *errorkinds.ArbError
	if !errors.As(err, &ae) || ae.Kind != errorkinds.KindNotFound {
		t.Fatalf("Register(unknown class) error = %v, want KindNotFound", err)
	}
}

func TestRegisterMandatoryOutsideAllowedMaskRejected(t *testing.T) {
	m, _ := newTestManager(t)

	// The game class may not hold audio_recording.
	_, err := m.Register(context.Background(), "cli", "addr", 1, "game", 0, resource.AudioRecording, resource.None, nil)
	var ae *errorkinds.ArbError
	if !errors.As(err, &ae) || ae.Kind != errorkinds.KindPermissionDenied {
		t.Fatalf("Register(disallowed mandatory) error = %v, want KindPermissionDenied", err)
	}
}

func TestReleaseSendsEmptyGrantOnlyWhenChanged(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli-1", "addr-1", 101, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Acquire(ctx, id, 1); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := m.Release(ctx, id); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	grants := ft.byKind("grant")
	if len(grants) < 2 {
		t.Fatalf("expected grant for acquire and empty grant for release, got %d", len(grants))
	}
	if last := grants[len(grants)-1]; last.value != resource.None {
		t.Errorf("final grant value = %v, want none", last.value)
	}

	snap, _ := m.Get(id)
	if snap.Request != "release" {
		t.Errorf("request = %q, want release", snap.Request)
	}
}

func TestSecondAcquireWithoutAdviceChangeSkipsResolver(t *testing.T) {
	engine := &countingEngine{}
	ft := &fakeTransport{}
	m := New(Config{
		Store:         factstore.New(),
		Classes:       resourceclass.NewDirectory(),
		Txns:          transaction.NewCoordinator(1),
		Transport:     ft,
		Engine:        engine,
		DefaultAccept: true,
	})
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	evalsAfterRegister := engine.evals("resource_request")

	if err := m.Acquire(ctx, id, 1); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if got := engine.evals("resource_request"); got != evalsAfterRegister+1 {
		t.Fatalf("first acquire should evaluate resource_request once, evals = %d", got)
	}

	if err := m.Acquire(ctx, id, 2); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if got := engine.evals("resource_request"); got != evalsAfterRegister+1 {
		t.Errorf("second identical acquire should not re-evaluate, evals = %d", got)
	}
}

func TestUpdateUnchangedFlagsIsANoOp(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	before := len(ft.byKind("grant")) + len(ft.byKind("advice"))

	if err := m.Update(ctx, id, "player", 0, resource.AudioPlayback, resource.None); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	after := len(ft.byKind("grant")) + len(ft.byKind("advice"))
	if after != before {
		t.Errorf("unchanged update produced %d new notifications", after-before)
	}
}

func TestUpdateClassChangeRejected(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err = m.Update(ctx, id, "game", 0, resource.AudioPlayback, resource.None)
	var ae *errorkinds.ArbError
	if !errors.As(err, &ae) || ae.Kind != errorkinds.KindInvalidArgument {
		t.Fatalf("Update(class change) error = %v, want KindInvalidArgument", err)
	}
}

func TestUnregisterRemovesFromAllIndices(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := m.Unregister(ctx, id); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if _, ok := m.Get(id); ok {
		t.Error("Get() should fail after unregister")
	}
	if members, _ := m.ClassMembers("player"); len(members) != 0 {
		t.Errorf("class list should be empty after unregister, got %d members", len(members))
	}
	if _, ok := m.store.GetEntry(factResourceSet, factstore.Row{fieldManagerID: factstore.UintValue(uint64(id))}); ok {
		t.Error("fact-store row should be gone after unregister")
	}
	if err := m.Unregister(ctx, id); err == nil {
		t.Error("second Unregister() should report NotFound")
	}
}

func TestBlockTrueSendsReleaseRequest(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	selector := factstore.Row{fieldManagerID: factstore.UintValue(uint64(id))}
	m.store.UpdateEntry(factResourceSet, selector, factstore.Row{fieldBlock: factstore.UintValue(1)})

	if got := ft.byKind("release_request"); len(got) != 1 {
		t.Fatalf("expected one release request after block, got %d", len(got))
	}
	snap, _ := m.Get(id)
	if !snap.Block {
		t.Error("snapshot should show block set")
	}
}

func TestBlockWithAutoReleaseSkipsClientMessage(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", resourceset.AutoRelease, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	selector := factstore.Row{fieldManagerID: factstore.UintValue(uint64(id))}
	m.store.UpdateEntry(factResourceSet, selector, factstore.Row{fieldBlock: factstore.UintValue(1)})

	if got := ft.byKind("release_request"); len(got) != 0 {
		t.Fatalf("auto-release set should not be sent a release request, got %d", len(got))
	}
}

func TestBlockSuppressesGrantEmission(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	id, err := m.Register(ctx, "cli", "addr", 1, "player", 0, resource.AudioPlayback, resource.None, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Acquire(ctx, id, 1); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	selector := factstore.Row{fieldManagerID: factstore.UintValue(uint64(id))}
	m.store.UpdateEntry(factResourceSet, selector, factstore.Row{fieldBlock: factstore.UintValue(1)})

	before := len(ft.byKind("grant"))
	m.store.UpdateEntry(factResourceSet, selector, factstore.Row{fieldGranted: factstore.UintValue(uint64(resource.AudioPlayback | resource.Vibra))})
	if after := len(ft.byKind("grant")); after != before {
		t.Errorf("blocked set emitted %d grant(s)", after-before)
	}

	// Advice is still delivered while blocked.
	beforeAdvice := len(ft.byKind("advice"))
	m.store.UpdateEntry(factResourceSet, selector, factstore.Row{fieldAdvice: factstore.UintValue(uint64(resource.Vibra))})
	if afterAdvice := len(ft.byKind("advice")); afterAdvice != beforeAdvice+1 {
		t.Errorf("blocked set should still emit advice, got %d new", afterAdvice-beforeAdvice)
	}
}

// countingEngine is a minimal rule engine that accepts every goal and
// counts evaluations per rule name.
type countingEngine struct {
	mu     sync.Mutex
	counts map[string]int
	names  []string
}

func (e *countingEngine) Find(_ context.Context, name string, _ int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.names {
		if n == name {
			return i, nil
		}
	}
	e.names = append(e.names, name)
	return len(e.names) - 1, nil
}

func (e *countingEngine) Eval(_ context.Context, ruleID int, _ []factstore.Value) (ruleengine.Result, ruleengine.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ruleID < 0 || ruleID >= len(e.names) {
		return nil, -1, errors.New("unknown rule id")
	}
	if e.counts == nil {
		e.counts = make(map[string]int)
	}
	e.counts[e.names[ruleID]]++
	return ruleengine.Result{}, 1, nil
}

func (e *countingEngine) evals(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[name]
}
