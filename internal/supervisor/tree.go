// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names one of the daemon's three failure domains. Services in
// different layers restart independently: a crash-looping bus listener
// cannot drag the admin API or the policy store down with it.
type Layer string

const (
	// LayerStore supervises persistence services: the policy-override
	// store's GC loop and anything else touching badger.
	LayerStore Layer = "store"

	// LayerBus supervises client-facing messaging: the request
	// dispatcher and the websocket push hub.
	LayerBus Layer = "bus"

	// LayerAPI supervises the admin/debug HTTP server.
	LayerAPI Layer = "api"
)

// layers is the fixed layer set, in tree-construction order.
var layers = []Layer{LayerStore, LayerBus, LayerAPI}

// TreeConfig holds the restart policy applied to the root and every
// layer alike.
type TreeConfig struct {
	// FailureThreshold is the failure count that trips a layer into
	// backoff. Default: 5.
	FailureThreshold float64

	// FailureDecay is the seconds over which old failures stop
	// counting. Default: 30.
	FailureDecay float64

	// FailureBackoff is how long a tripped layer waits before
	// restarting its services. Default: 15s.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take
	// before it is abandoned and reported. Default: 10s.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the daemon's production restart policy.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// withDefaults fills zero values so a partially-specified config is
// usable.
func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Tree is the daemon's suture supervisor tree: one root owning a fixed
// store/bus/api layer set. Restart and backoff events flow through
// sutureslog into the structured log.
type Tree struct {
	root   *suture.Supervisor
	byName map[Layer]*suture.Supervisor
	config TreeConfig
}

// NewTree builds the tree. logger receives suture's lifecycle events;
// pass logging.NewSlogLogger() so they share the daemon's log stream.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	config = config.withDefaults()

	// sutureslog's hook constructor has a pointer receiver: the Handler
	// must be addressable.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	root := suture.New("resourced", config.spec(hook))
	byName := make(map[Layer]*suture.Supervisor, len(layers))
	for _, layer := range layers {
		sup := suture.New(string(layer)+"-layer", config.spec(nil))
		root.Add(sup)
		byName[layer] = sup
	}

	return &Tree{root: root, byName: byName, config: config}, nil
}

// Add places svc under the named layer and returns its token.
func (t *Tree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.byName[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	return sup.Add(svc), nil
}

// AddStoreService places svc in the persistence layer.
func (t *Tree) AddStoreService(svc suture.Service) suture.ServiceToken {
	return t.byName[LayerStore].Add(svc)
}

// AddBusService places svc in the messaging layer.
func (t *Tree) AddBusService(svc suture.Service) suture.ServiceToken {
	return t.byName[LayerBus].Add(svc)
}

// AddAPIService places svc in the admin-API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.byName[LayerAPI].Add(svc)
}

// Remove stops and removes a service by token, searching the layer it
// was added to.
func (t *Tree) Remove(layer Layer, token suture.ServiceToken) error {
	sup, ok := t.byName[layer]
	if !ok {
		return fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	return sup.Remove(token)
}

// RemoveAndWait removes a service and blocks until it has fully
// stopped, for teardown paths that must not race the service's cleanup.
func (t *Tree) RemoveAndWait(layer Layer, token suture.ServiceToken, timeout time.Duration) error {
	sup, ok := t.byName[layer]
	if !ok {
		return fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	return sup.RemoveAndWait(token, timeout)
}

// Serve runs the tree until ctx is cancelled. This is the daemon's main
// blocking call.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree on its own goroutine; the returned
// channel yields the terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown
// timeout, for post-shutdown diagnostics.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
