// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/resarbiter/resourced/internal/resource"
)

type recordingHandler struct {
	got []Request
}

func (r *recordingHandler) HandleRequest(_ context.Context, req Request) error {
	r.got = append(r.got, req)
	return nil
}

func TestLoopbackSubmitDispatchesToHandler(t *testing.T) {
	l := NewLoopback()
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = l.Run(ctx, h) }()
	time.Sleep(5 * time.Millisecond)

	if err := l.Submit(ctx, Request{Kind: RequestAcquire, ManagerID: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if len(h.got) != 1 || h.got[0].Kind != RequestAcquire {
		t.Fatalf("expected handler to receive one acquire request, got %v", h.got)
	}
}

func TestLoopbackSubmitWithoutHandlerErrors(t *testing.T) {
	l := NewLoopback()
	if err := l.Submit(context.Background(), Request{Kind: RequestAcquire}); err == nil {
		t.Fatal("expected error when no handler is registered")
	}
}

func TestLoopbackDeliversGrantToRegisteredClient(t *testing.T) {
	l := NewLoopback()
	var got Notification
	done := make(chan struct{})

	l.RegisterClient("client:1", func(n Notification) {
		got = n
		close(done)
	})

	if err := l.SendGrant("client:1", 1, 42, resource.AudioPlayback); err != nil {
		t.Fatalf("SendGrant: %v", err)
	}
	<-done

	if got.Kind != NotifyGrant || got.ManagerID != 1 || got.ReqNo != 42 || got.Value != resource.AudioPlayback {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestLoopbackSendToUnknownClientErrors(t *testing.T) {
	l := NewLoopback()
	if err := l.SendGrant("nobody", 1, 0, resource.None); err == nil {
		t.Fatal("expected error for unregistered client")
	}
}

func TestLoopbackUnregisterClient(t *testing.T) {
	l := NewLoopback()
	l.RegisterClient("client:1", func(Notification) {})
	l.UnregisterClient("client:1")

	if err := l.SendAdvice("client:1", 1, 0, resource.None); err == nil {
		t.Fatal("expected error after unregister")
	}
}
