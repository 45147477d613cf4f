// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"
	"testing"
	"time"

	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/transport"
)

// recordingHandler captures requests delegated past the notification
// routing.
type recordingHandler struct {
	reqs []transport.Request
}

func (h *recordingHandler) HandleRequest(_ context.Context, req transport.Request) error {
	h.reqs = append(h.reqs, req)
	return nil
}

func TestBusHandlerPlayCreatesProxy(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t)
	next := &recordingHandler{}
	h := NewBusHandler(registry, nil, time.Minute, next)

	err := h.HandleRequest(context.Background(), transport.Request{
		Kind:       transport.RequestPlay,
		EventName:  "ringtone",
		ClassName:  "event",
		ClientAddr: "client-1",
		All:        resource.AudioPlayback,
	})
	if err != nil {
		t.Fatalf("HandleRequest(play) error = %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("registry Len = %d, want 1", registry.Len())
	}
	if len(next.reqs) != 0 {
		t.Error("play must not be delegated to the arbitration handler")
	}
}

func TestBusHandlerStopRoutesToProxy(t *testing.T) {
	registry, _, _, pusher := newTestRegistry(t)
	h := NewBusHandler(registry, nil, time.Minute, &recordingHandler{})
	ctx := context.Background()

	p := createProxy(t, registry)
	if err := h.HandleRequest(ctx, transport.Request{Kind: transport.RequestStop, ProxyID: p.ID()}); err != nil {
		t.Fatalf("HandleRequest(stop) error = %v", err)
	}

	pusher.mu.Lock()
	completed := pusher.completed
	pusher.mu.Unlock()
	if completed != 1 {
		t.Errorf("completed notices = %d, want 1", completed)
	}
	if registry.Len() != 0 {
		t.Errorf("registry Len = %d, want 0 after stop", registry.Len())
	}
}

func TestBusHandlerUnknownProxyIsNotFound(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t)
	h := NewBusHandler(registry, nil, 0, &recordingHandler{})

	err := h.HandleRequest(context.Background(), transport.Request{Kind: transport.RequestStop, ProxyID: 999})
	if !errorkinds.Is(err, errorkinds.KindNotFound) {
		t.Fatalf("HandleRequest(unknown stop) error = %v, want KindNotFound", err)
	}
}

func TestBusHandlerDelegatesArbitrationKinds(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t)
	next := &recordingHandler{}
	h := NewBusHandler(registry, nil, 0, next)

	req := transport.Request{Kind: transport.RequestAcquire, ManagerID: 5}
	if err := h.HandleRequest(context.Background(), req); err != nil {
		t.Fatalf("HandleRequest(acquire) error = %v", err)
	}
	if len(next.reqs) != 1 || next.reqs[0].Kind != transport.RequestAcquire {
		t.Errorf("acquire should be delegated, got %v", next.reqs)
	}
}
