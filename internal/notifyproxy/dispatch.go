// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"
	"time"

	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/ruleengine"
	"github.com/resarbiter/resourced/internal/transport"
)

// BusHandler routes notification operations (play/stop/pause/resume)
// from the transport to the proxy Registry, delegating every other
// request kind to the arbitration dispatcher behind it.
type BusHandler struct {
	registry  *Registry
	engine    ruleengine.Engine
	playLimit time.Duration
	next      transport.Handler
}

// NewBusHandler chains notification routing in front of next. playLimit
// of zero selects the default.
func NewBusHandler(registry *Registry, engine ruleengine.Engine, playLimit time.Duration, next transport.Handler) *BusHandler {
	return &BusHandler{registry: registry, engine: engine, playLimit: playLimit, next: next}
}

// HandleRequest implements transport.Handler.
func (h *BusHandler) HandleRequest(ctx context.Context, req transport.Request) error {
	switch req.Kind {
	case transport.RequestPlay:
		return h.handlePlay(ctx, req)
	case transport.RequestStop:
		return h.dispatch(ctx, req.ProxyID, EventClientStop, dispatchArgs{})
	case transport.RequestPause:
		return h.dispatch(ctx, req.ProxyID, EventClientPauseResume, dispatchArgs{Pause: true})
	case transport.RequestResume:
		return h.dispatch(ctx, req.ProxyID, EventClientPauseResume, dispatchArgs{Pause: false})
	default:
		return h.next.HandleRequest(ctx, req)
	}
}

// handlePlay resolves the event name through notification_request and
// creates a proxy whose resource set carries the rule's mandatory/
// optional masks. Without a rule engine, or when the rule yields no
// result, the request's own class and masks are used: an empty class
// becomes "event" and an empty mandatory mask becomes audio playback.
// The event name itself is not checked.
func (h *BusHandler) handlePlay(ctx context.Context, req transport.Request) error {
	className := req.ClassName
	mandatory := req.All &^ req.Opt
	optional := req.Opt

	if h.engine != nil {
		res, status, err := ruleengine.NotificationRequest(ctx, h.engine, req.EventName)
		if err == nil && status > 0 {
			if res.Error != "" {
				return errorkinds.New(errorkinds.KindRuleFailure, "notifyproxy.BusHandler", res.Error)
			}
			if res.Type != "" {
				className = res.Type
			}
			mandatory = resource.Mask(res.Mandatory)
			optional = resource.Mask(res.Optional)
		}
	}
	if className == "" {
		className = "event"
	}
	if mandatory == resource.None {
		mandatory = resource.AudioPlayback
	}

	_, err := h.registry.Create(ctx, req.EventName, className, req.ClientAddr, mandatory, optional, h.playLimit)
	return err
}

func (h *BusHandler) dispatch(ctx context.Context, proxyID uint64, event Event, args dispatchArgs) error {
	p, ok := h.registry.Lookup(proxyID)
	if !ok {
		return errorkinds.New(errorkinds.KindNotFound, "notifyproxy.BusHandler", "unknown proxy id")
	}
	return p.Dispatch(ctx, event, args)
}
