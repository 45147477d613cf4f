// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/resarbiter/resourced/internal/authz"
	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceset"
	"github.com/resarbiter/resourced/internal/transport"
)

// Per-client request throttle. The arbitration loop is single-threaded;
// a client flooding acquire/release bursts must not starve everyone
// else's requests. Generous enough that no well-behaved client ever
// notices.
const (
	clientRateLimit = rate.Limit(50) // requests per second, sustained
	clientRateBurst = 100
)

// Dispatcher adapts the wire-neutral transport.Request stream onto the
// Manager's typed operations. It is the transport.Handler every
// Dispatcher implementation (NATS, loopback) feeds.
type Dispatcher struct {
	manager *Manager

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher wraps a Manager for transport dispatch.
func NewDispatcher(m *Manager) *Dispatcher {
	return &Dispatcher{
		manager:  m,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *Dispatcher) limiter(clientAddr string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[clientAddr]
	if !ok {
		l = rate.NewLimiter(clientRateLimit, clientRateBurst)
		d.limiters[clientAddr] = l
	}
	return l
}

var errRateLimited = errorkinds.New(errorkinds.KindInvalidArgument, "arbiter.Dispatcher", "client request rate exceeded")

// HandleRequest decodes one inbound operation and routes it. Errors are
// returned to the transport, which replies (errcode, errmsg) to the
// client; the fact store and in-memory state are untouched on any
// validation failure.
func (d *Dispatcher) HandleRequest(ctx context.Context, req transport.Request) error {
	if req.ClientAddr != "" && !d.limiter(req.ClientAddr).Allow() {
		metrics.RecordRequest(string(req.Kind), errRateLimited)
		return errRateLimited
	}

	ctx = logging.ContextWithSet(ctx, req.ManagerID, req.ClassName)
	err := d.handle(ctx, req)
	metrics.RecordRequest(string(req.Kind), err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("kind", string(req.Kind)).
			Str("client", req.ClientAddr).
			Msg("arbiter: request failed")
	}
	return err
}

func (d *Dispatcher) handle(ctx context.Context, req transport.Request) error {
	switch req.Kind {
	case transport.RequestRegister:
		flags, err := resourceset.ParseModeFlags(req.ModeFlags)
		if err != nil {
			return errorkinds.Wrap(errorkinds.KindInvalidArgument, "arbiter.Dispatcher", "parse mode flags", err)
		}
		mandatory := req.All &^ req.Opt
		managerID, err := d.manager.Register(ctx, req.ClientID, req.ClientAddr, req.ClientPID, req.ClassName, flags, mandatory, req.Opt, authz.ParseCredentials(req.Credentials))
		if err != nil {
			return err
		}
		if err := d.manager.transport.SendRegistered(req.ClientAddr, managerID, req.ReqNo); err != nil {
			logging.Warn().Err(err).Uint32("manager_id", managerID).Msg("arbiter: registered reply send failed")
		}
		return nil

	case transport.RequestUpdate:
		flags, err := resourceset.ParseModeFlags(req.ModeFlags)
		if err != nil {
			return errorkinds.Wrap(errorkinds.KindInvalidArgument, "arbiter.Dispatcher", "parse mode flags", err)
		}
		return d.manager.Update(ctx, req.ManagerID, req.ClassName, flags, req.All&^req.Opt, req.Opt)

	case transport.RequestAcquire:
		return d.manager.Acquire(ctx, req.ManagerID, req.ReqNo)

	case transport.RequestRelease:
		return d.manager.Release(ctx, req.ManagerID)

	case transport.RequestAudio:
		method, err := resource.ParseMatchMethod(req.SpecMatchMethod)
		if err != nil && req.SpecMatchMethod != "" {
			return errorkinds.Wrap(errorkinds.KindInvalidArgument, "arbiter.Dispatcher", "parse match method", err)
		}
		group := req.SpecGroup
		if group == "" {
			if snap, ok := d.manager.Get(req.ManagerID); ok {
				group = resource.DefaultAudioGroup(snap.ClassName)
			}
		}
		spec := resource.NewAudioSpec(group, req.ClientPID, req.SpecPropertyName, method, req.SpecMatchPattern, req.SpecRole)
		return d.manager.Audio(ctx, req.ManagerID, spec)

	case transport.RequestVideo:
		return d.manager.Video(ctx, req.ManagerID, req.ClientPID)

	case transport.RequestUnlink:
		return d.manager.Unregister(ctx, req.ManagerID)

	default:
		return errorkinds.New(errorkinds.KindInvalidArgument, "arbiter.Dispatcher", "unknown request kind")
	}
}
