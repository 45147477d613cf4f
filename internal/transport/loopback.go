// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/resarbiter/resourced/internal/resource"
)

// ClientCallback receives notifications for one same-process client
// registered with a Loopback transport.
type ClientCallback func(n Notification)

// Loopback is the default, dependency-free transport: manager and clients
// share a process, so requests and notifications are delivered as direct
// function calls rather than serialized over a socket (the NATS stack remains
// available behind the `nats` build tag for
// out-of-process deployments).
type Loopback struct {
	mu        sync.RWMutex
	callbacks map[string]ClientCallback
	handler   Handler
}

// NewLoopback creates an empty Loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{callbacks: make(map[string]ClientCallback)}
}

// RegisterClient associates a client address with the callback that
// receives its notifications. Addresses are caller-chosen opaque strings
// (e.g. "client:<uuid>"), not network addresses.
func (l *Loopback) RegisterClient(addr string, cb ClientCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[addr] = cb
}

// UnregisterClient removes a client's callback.
func (l *Loopback) UnregisterClient(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.callbacks, addr)
}

// Run implements Dispatcher. The Loopback transport has no inbound
// network loop; requests arrive via Submit. Run simply blocks until the
// context is canceled, recording the handler so Submit can dispatch to it.
func (l *Loopback) Run(ctx context.Context, h Handler) error {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// Close clears all registered client callbacks.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = make(map[string]ClientCallback)
	return nil
}

// Submit feeds a request directly to the registered Handler, as a
// same-process client would over the bus.
func (l *Loopback) Submit(ctx context.Context, req Request) error {
	l.mu.RLock()
	h := l.handler
	l.mu.RUnlock()
	if h == nil {
		return fmt.Errorf("transport: loopback has no handler registered")
	}
	return h.HandleRequest(ctx, req)
}

func (l *Loopback) deliver(addr string, n Notification) error {
	l.mu.RLock()
	cb, ok := l.callbacks[addr]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no loopback client registered for %q", addr)
	}
	cb(n)
	return nil
}

// SendGrant implements resourceset.Transport.
func (l *Loopback) SendGrant(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyGrant, ManagerID: managerID, ReqNo: reqno, Value: value})
}

// SendAdvice implements resourceset.Transport.
func (l *Loopback) SendAdvice(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyAdvice, ManagerID: managerID, ReqNo: reqno, Value: value})
}

// SendReleaseRequest implements resourceset.Transport.
func (l *Loopback) SendReleaseRequest(clientAddr string, managerID uint32) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyReleaseRequest, ManagerID: managerID})
}

// SendRegistered implements resourceset.Transport.
func (l *Loopback) SendRegistered(clientAddr string, managerID uint32, reqno uint64) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyRegistered, ManagerID: managerID, ReqNo: reqno})
}

// SendProxyStatus implements notifyproxy.ClientPusher.
func (l *Loopback) SendProxyStatus(clientAddr string, proxyID uint64, status string) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyProxyStatus, ProxyID: proxyID, Status: status})
}

// SendProxyFailed implements notifyproxy.ClientPusher.
func (l *Loopback) SendProxyFailed(clientAddr string, proxyID uint64, reason string) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyProxyFailed, ProxyID: proxyID, Reason: reason})
}

// SendProxyCompleted implements notifyproxy.ClientPusher.
func (l *Loopback) SendProxyCompleted(clientAddr string, proxyID uint64) error {
	return l.deliver(clientAddr, Notification{Kind: NotifyProxyCompleted, ProxyID: proxyID})
}
