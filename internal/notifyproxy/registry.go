// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"
	"sync"
	"time"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/ruleengine"
)

// Registry is the Notification Proxy's dual hash table: every proxy is
// reachable both by proxy id and by client address. Callers never keep
// a *Proxy across a suspension
// point, only its id, and re-look-up through the Registry before every
// dispatch.
type Registry struct {
	mu       sync.Mutex
	nextID   uint64
	byID     map[uint64]*Proxy
	byClient map[string][]uint64

	manager  *arbiter.Manager
	engine   ruleengine.Engine
	backend  Backend
	notifier ClientPusher
}

// RegistryConfig bundles the collaborators every Proxy the registry
// creates shares.
type RegistryConfig struct {
	Manager  *arbiter.Manager
	Engine   ruleengine.Engine
	Backend  Backend
	Notifier ClientPusher
}

// NewRegistry builds an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		byID:     make(map[uint64]*Proxy),
		byClient: make(map[string][]uint64),
		manager:  cfg.Manager,
		engine:   cfg.Engine,
		backend:  cfg.Backend,
		notifier: cfg.Notifier,
	}
}

// Create allocates a new proxy id, builds the proxy (which registers and
// acquires its resource set), and then links it into both hashes. The
// proxy is not in the Registry while its set is being registered and
// acquired, so a watcher firing inside those calls cannot find it here.
func (r *Registry) Create(ctx context.Context, eventName, className, clientAddr string, mandatory, optional resource.Mask, playLimit time.Duration) (*Proxy, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	p, err := newProxy(ctx, id, proxyConfig{
		EventName:  eventName,
		ClassName:  className,
		ClientAddr: clientAddr,
		Mandatory:  mandatory,
		Optional:   optional,
		Manager:    r.manager,
		Engine:     r.engine,
		Backend:    r.backend,
		Notifier:   r.notifier,
		PlayLimit:  playLimit,
		OnDestroy:  r.remove,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = p
	r.byClient[clientAddr] = append(r.byClient[clientAddr], id)
	r.mu.Unlock()
	return p, nil
}

// Lookup re-looks-up a proxy by id. Callers must never dereference a
// *Proxy retained across a suspension point; they hold the id and call
// Lookup again (ids go stale after callbacks - re-look-up before
// dereference).
func (r *Registry) Lookup(id uint64) (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	return p, ok
}

// ByClient returns every live proxy id for a client address.
func (r *Registry) ByClient(clientAddr string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.byClient[clientAddr]))
	copy(out, r.byClient[clientAddr])
	return out
}

// ClientDied fires a synthetic client_died event at every live proxy for
// clientAddr, then
// forgets the address.
func (r *Registry) ClientDied(ctx context.Context, clientAddr string) {
	for _, id := range r.ByClient(clientAddr) {
		if p, ok := r.Lookup(id); ok {
			_ = p.Dispatch(ctx, EventClientDied, dispatchArgs{})
		}
	}
}

// BackendGone fires a synthetic backend_timeout at every live proxy,
// for when the bus reports the backend renderer service gone.
func (r *Registry) BackendGone(ctx context.Context) {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		if p, ok := r.Lookup(id); ok {
			_ = p.Dispatch(ctx, EventBackendTimeout, dispatchArgs{})
		}
	}
}

// remove deletes a proxy from both hashes. It is called as the onDestroy
// callback from selfKill, before the resource-release call runs - by
// the time remove runs, a racing grant
// callback can no longer find this proxy by proxy id or client address
// through the Registry.
func (r *Registry) remove(p *Proxy) {
	metrics.ProxiesLive.WithLabelValues(p.State().String()).Dec()
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, p.id)
	ids := r.byClient[p.clientAddr]
	for i, id := range ids {
		if id == p.id {
			r.byClient[p.clientAddr] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byClient[p.clientAddr]) == 0 {
		delete(r.byClient, p.clientAddr)
	}
}

// Len reports the number of live proxies, for introspection/metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
