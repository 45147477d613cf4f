// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package notifyproxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceset"
	"github.com/resarbiter/resourced/internal/ruleengine"
)

// State is one of the Notification Proxy's six states.
type State int

const (
	StateCreated State = iota
	StateAcquiring
	StateForwarded
	StateCompleted
	StateStopped
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAcquiring:
		return "acquiring"
	case StateForwarded:
		return "forwarded"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Event is one of the six event kinds the transition table dispatches
// on. ClientPause and ClientResume are modelled as one Event carrying a
// Pause flag since the table treats them as a single column.
type Event int

const (
	EventResourceGrant Event = iota
	EventBackendStatus
	EventBackendTimeout
	EventClientStop
	EventClientDied
	EventClientPauseResume
)

func (e Event) String() string {
	switch e {
	case EventResourceGrant:
		return "resource_grant"
	case EventBackendStatus:
		return "backend_status"
	case EventBackendTimeout:
		return "backend_timeout"
	case EventClientStop:
		return "client_stop"
	case EventClientDied:
		return "client_died"
	case EventClientPauseResume:
		return "client_pause_resume"
	default:
		return "unknown"
	}
}

// PlayMode classifies a grant: LONG and SHORT both run
// under play_limit, but only a LONG play has audio/LEDs/vibra flags
// derived from its granted mask; BUSY means the grant carried no
// resources at all (every mandatory resource was denied).
type PlayMode int

const (
	ModeLong PlayMode = iota
	ModeShort
	ModeBusy
)

func (m PlayMode) String() string {
	switch m {
	case ModeLong:
		return "long"
	case ModeShort:
		return "short"
	case ModeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// DefaultPlayLimit is the play timer's default duration.
const DefaultPlayLimit = 5 * time.Minute

// stopTimeout is the fixed grace period a backend gets to acknowledge a
// forwarded stop before the proxy gives up and self-kills.
const stopTimeout = 10 * time.Second

// playTimeoutSlack is added to play_limit to get play_timeout.
const playTimeoutSlack = 30 * time.Second

// Backend is the renderer the proxy forwards a granted play to. It is
// deliberately abstract: the renderer's own implementation lives in a
// separate service, and the proxy only needs to start, stop, and pause/
// resume whatever is on the other end.
type Backend interface {
	ForwardPlay(ctx context.Context, proxyID uint64, eventName string, granted resource.Mask, mode PlayMode) error
	ForwardStop(ctx context.Context, proxyID uint64) error
	ForwardPauseResume(ctx context.Context, proxyID uint64, pause bool) error
}

// ClientPusher is the proxy's outbound half: status/failure/completion
// pushes back to the client that initiated the play.
// transport.Loopback and transport.NATSTransport both implement it
// alongside resourceset.Transport.
type ClientPusher interface {
	SendProxyStatus(clientAddr string, proxyID uint64, status string) error
	SendProxyFailed(clientAddr string, proxyID uint64, reason string) error
	SendProxyCompleted(clientAddr string, proxyID uint64) error
}

// Proxy is the Notification Proxy: a per-play object
// bridging one client-initiated notification through resource arbitration
// (its own Resource Set, registered under the event's notification class)
// to a Backend renderer.
type Proxy struct {
	mu   sync.Mutex
	busy bool

	id         uint64
	eventName  string
	className  string
	clientAddr string
	managerID  uint32
	mandatory  resource.Mask
	optional   resource.Mask

	state State
	mode  PlayMode

	manager  *arbiter.Manager
	engine   ruleengine.Engine
	backend  Backend
	notifier ClientPusher
	playLimit time.Duration

	timer    *time.Timer
	onDestroy func(*Proxy)
}

// newProxy builds a Proxy, registers its resource set and acquires it,
// returning the proxy in StateAcquiring with its play timer armed.
// It is unexported: callers go through Registry.Create so proxies are
// always reachable by both the id hash and the client-address hash.
func newProxy(ctx context.Context, id uint64, cfg proxyConfig) (*Proxy, error) {
	p := &Proxy{
		id:         id,
		eventName:  cfg.EventName,
		className:  cfg.ClassName,
		clientAddr: cfg.ClientAddr,
		mandatory:  cfg.Mandatory,
		optional:   cfg.Optional,
		manager:    cfg.Manager,
		engine:     cfg.Engine,
		backend:    cfg.Backend,
		notifier:   cfg.Notifier,
		playLimit:  cfg.PlayLimit,
		onDestroy:  cfg.OnDestroy,
		state:      StateCreated,
	}
	if p.playLimit <= 0 {
		p.playLimit = DefaultPlayLimit
	}
	metrics.ProxiesLive.WithLabelValues(p.state.String()).Inc()

	managerID, err := cfg.Manager.Register(ctx, fmt.Sprintf("proxy-%d", id), cfg.ClientAddr, 0, cfg.ClassName, resourceset.ModeFlags(0), cfg.Mandatory, cfg.Optional, nil)
	if err != nil {
		metrics.ProxiesLive.WithLabelValues(p.state.String()).Dec()
		return nil, errorkinds.Wrap(errorkinds.KindPermissionDenied, "notifyproxy.newProxy", "register resource set for proxy", err)
	}
	p.managerID = managerID

	p.armTimer(p.playLimit + playTimeoutSlack)
	p.setState(StateAcquiring)
	if err := cfg.Manager.Acquire(ctx, managerID, id); err != nil {
		p.cancelTimer()
		p.setState(StateCreated)
		metrics.ProxiesLive.WithLabelValues(p.state.String()).Dec()
		return nil, errorkinds.Wrap(errorkinds.KindPermissionDenied, "notifyproxy.newProxy", "acquire resource set for proxy", err)
	}
	return p, nil
}

type proxyConfig struct {
	EventName  string
	ClassName  string
	ClientAddr string
	Mandatory  resource.Mask
	Optional   resource.Mask
	Manager    *arbiter.Manager
	Engine     ruleengine.Engine
	Backend    Backend
	Notifier   ClientPusher
	PlayLimit  time.Duration
	OnDestroy  func(*Proxy)
}

// ID returns the proxy's opaque identifier.
func (p *Proxy) ID() uint64 { return p.id }

// State returns the proxy's current state.
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// armTimer cancels any pending timer and starts a fresh one, nulling out
// the stale timer reference before rearming so a straggling fire from a
// just-cancelled timer can never be mistaken for a live one.
func (p *Proxy) armTimer(d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.timer = time.AfterFunc(d, func() {
		metrics.ProxyTimeouts.WithLabelValues("play_or_stop").Inc()
		p.Dispatch(context.Background(), EventBackendTimeout, dispatchArgs{})
	})
}

func (p *Proxy) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// dispatchArgs carries the event-specific payload: the granted mask for
// EventResourceGrant, a status string for EventBackendStatus, and the
// pause/resume flag for EventClientPauseResume.
type dispatchArgs struct {
	Granted resource.Mask
	Status  string
	Pause   bool
}

// Dispatch drives the proxy's transition table for one event.
// It is non-reentrant: an event arriving while another is still being
// processed is logged and rejected without any state change.
func (p *Proxy) Dispatch(ctx context.Context, event Event, args dispatchArgs) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		logging.Error().Uint64("proxy_id", p.id).Str("event", event.String()).Msg("notifyproxy: reentrant dispatch rejected")
		return errorkinds.New(errorkinds.KindConsistencyError, "notifyproxy.Dispatch", "reentrant dispatch")
	}
	p.busy = true
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateCreated:
		return p.dispatchCreated(ctx, event, args)
	case StateAcquiring:
		return p.dispatchAcquiring(ctx, event, args)
	case StateForwarded:
		return p.dispatchForwarded(ctx, event, args)
	case StateCompleted:
		return p.dispatchCompleted(ctx, event, args)
	case StateStopped:
		return p.dispatchStopped(ctx, event, args)
	case StateKilled:
		return p.dispatchKilled(ctx, event, args)
	default:
		return errorkinds.New(errorkinds.KindConsistencyError, "notifyproxy.Dispatch", "unknown state")
	}
}

func (p *Proxy) setState(s State) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()
	metrics.ProxiesLive.WithLabelValues(old.String()).Dec()
	metrics.ProxiesLive.WithLabelValues(s.String()).Inc()
}

// dispatchCreated implements the "created" row: every event is a no-op
// except backend_timeout (send status, self-kill) and client_died
// (self-kill outright).
func (p *Proxy) dispatchCreated(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventBackendTimeout:
		p.notifyStatus("timeout")
		p.selfKill(ctx)
	case EventClientDied:
		p.selfKill(ctx)
	}
	return nil
}

// dispatchAcquiring implements the "acquiring" row.
func (p *Proxy) dispatchAcquiring(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventResourceGrant:
		p.mode = p.classifyPlay(ctx, args.Granted)
		p.notifyStatus(p.mode.String())
		if err := p.backend.ForwardPlay(ctx, p.id, p.eventName, args.Granted, p.mode); err != nil {
			p.notifyFailed("forward play failed: " + err.Error())
			p.selfKill(ctx)
			return nil
		}
		p.cancelTimer()
		p.armTimer(p.playLimit + playTimeoutSlack)
		p.setState(StateForwarded)
	case EventBackendTimeout:
		p.notifyCompleted()
		p.selfKill(ctx)
	case EventClientStop:
		// premature_stop: schedule an immediate completed reply, then
		// destroy.
		p.notifyCompleted()
		p.selfKill(ctx)
	case EventClientDied:
		p.selfKill(ctx)
	}
	return nil
}

// dispatchForwarded implements the "forwarded" row, the only state with a
// live backend connection.
func (p *Proxy) dispatchForwarded(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventResourceGrant:
		if args.Granted&p.mandatory != p.mandatory {
			// Resources lost mid-play: stop the backend and give it
			// stop_timeout to acknowledge before giving up.
			if err := p.backend.ForwardStop(ctx, p.id); err != nil {
				logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: forward stop failed")
			}
			p.cancelTimer()
			p.armTimer(stopTimeout)
			p.setState(StateStopped)
		}
	case EventBackendStatus:
		p.notifyStatus(args.Status)
		p.selfKill(ctx)
	case EventBackendTimeout:
		p.notifyFailed("backend timed out")
		p.selfKill(ctx)
	case EventClientStop:
		if err := p.backend.ForwardStop(ctx, p.id); err != nil {
			logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: forward stop failed")
		}
		p.cancelTimer()
		p.armTimer(stopTimeout)
		p.setState(StateStopped)
	case EventClientDied:
		if err := p.backend.ForwardStop(ctx, p.id); err != nil {
			logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: forward stop failed")
		}
		p.setState(StateKilled)
	case EventClientPauseResume:
		if err := p.backend.ForwardPauseResume(ctx, p.id, args.Pause); err != nil {
			logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: forward pause/resume failed")
		}
	}
	return nil
}

// dispatchCompleted implements the "completed" row: every listed event
// self-kills; anything else is a no-op.
func (p *Proxy) dispatchCompleted(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventResourceGrant, EventBackendTimeout, EventClientDied:
		p.selfKill(ctx)
	}
	return nil
}

// dispatchStopped implements the "stopped" row: awaiting the backend's
// stop acknowledgement (backend_status) or its timeout.
func (p *Proxy) dispatchStopped(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventBackendStatus:
		p.notifyStatus(args.Status)
		p.selfKill(ctx)
	case EventBackendTimeout:
		p.selfKill(ctx)
	case EventClientDied:
		p.selfKill(ctx)
	}
	return nil
}

// dispatchKilled implements the "killed" row: the backend's own stop
// acknowledgement or its timeout — both no-ops by the time the proxy is
// already dying, but self-kill is idempotent so a duplicate fire is safe.
func (p *Proxy) dispatchKilled(ctx context.Context, event Event, args dispatchArgs) error {
	switch event {
	case EventBackendStatus, EventBackendTimeout:
		p.selfKill(ctx)
	}
	return nil
}

// classifyPlay: an empty grant is BUSY; otherwise
// the rule engine's notification_play_short decides LONG vs SHORT.
func (p *Proxy) classifyPlay(ctx context.Context, granted resource.Mask) PlayMode {
	if granted == resource.None {
		return ModeBusy
	}
	if p.engine == nil {
		return ModeLong
	}
	short, err := ruleengine.NotificationPlayShort(ctx, p.engine, p.eventName)
	if err != nil {
		logging.Warn().Err(err).Str("event", p.eventName).Msg("notifyproxy: notification_play_short failed, defaulting to long")
		return ModeLong
	}
	if short {
		return ModeShort
	}
	return ModeLong
}

func (p *Proxy) notifyStatus(status string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SendProxyStatus(p.clientAddr, p.id, status); err != nil {
		logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: send status failed")
	}
}

func (p *Proxy) notifyFailed(reason string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SendProxyFailed(p.clientAddr, p.id, reason); err != nil {
		logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: send failed-notice failed")
	}
}

func (p *Proxy) notifyCompleted() {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SendProxyCompleted(p.clientAddr, p.id); err != nil {
		logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: send completed-notice failed")
	}
}

// selfKill marks the proxy killed and releases its resource set.
// onDestroy — which removes
// the proxy from the Registry's id and client-address hashes — runs
// *before* the resource-release call, specifically so a grant callback
// racing against the release can never re-enter a proxy that is already
// gone from both hashes. This ordering is load-bearing; do not swap it.
func (p *Proxy) selfKill(ctx context.Context) {
	p.cancelTimer()
	p.setState(StateKilled)
	if p.onDestroy != nil {
		p.onDestroy(p)
	}
	if err := p.manager.Release(ctx, p.managerID); err != nil {
		logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: release on self-kill failed")
	}
	if err := p.manager.Unregister(ctx, p.managerID); err != nil {
		logging.Warn().Err(err).Uint64("proxy_id", p.id).Msg("notifyproxy: unregister on self-kill failed")
	}
}
