// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Command server runs the resource policy daemon: it owns the fixed
// class table, arbitrates audio/video/vibra/LED/button/screen access
// among competing clients over the message bus, and pushes grant/advice
// notifications back as policy decisions land.
//
// # Quick Start
//
// Loopback transport (single-process development):
//
//	LOG_FORMAT=console ./server
//
// Bus transport (requires a NATS broker and a -tags nats build):
//
//	TRANSPORT_KIND=nats TRANSPORT_NATS_EMBEDDED=false TRANSPORT_NATS_URL=nats://localhost:4222 ./server
//
// # Configuration
//
// Configuration layers: compiled defaults, then an optional config file
// (CONFIG_PATH, else the first of config.yaml or config.yml in the
// working directory or /etc/resourced), then environment variables. See
// internal/config for the full variable list.
//
//	@title			Resourced Admin API
//	@version		1.0
//	@description	Read-only introspection of live resource sets, classes, and transactions.
//	@BasePath		/api/v1
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	_ "github.com/resarbiter/resourced/docs" // generated swagger document
	"github.com/resarbiter/resourced/internal/api"
	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/authz"
	"github.com/resarbiter/resourced/internal/config"
	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/notifyproxy"
	"github.com/resarbiter/resourced/internal/persistence"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/ruleengine"
	"github.com/resarbiter/resourced/internal/supervisor"
	"github.com/resarbiter/resourced/internal/transaction"
	"github.com/resarbiter/resourced/internal/transport"
	ws "github.com/resarbiter/resourced/internal/websocket"
)

// serviceFunc adapts a plain run function to suture.Service.
type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Serve(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("transport", cfg.Transport.Kind).
		Str("rule_backend", cfg.RuleEngine.Backend).
		Msg("Starting resourced with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Policy-override persistence restores before the class directory is
	// built, so restored overrides shape the directory the same way
	// config-file overrides do.
	overrides := make(map[string]resourceclass.Override)
	for name, o := range cfg.Classes {
		overrides[name] = resourceclass.Override{
			Allowed: o.Allowed,
			Shared:  o.Shared,
			Public:  o.Public,
			Share:   o.Share,
		}
	}

	var store *persistence.Store
	if cfg.Persistence.Enabled {
		store, err = persistence.Open(persistence.Config{
			Dir:        cfg.Persistence.Dir,
			SyncWrites: cfg.Persistence.SyncWrites,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open policy-override store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing policy-override store")
			}
		}()

		restored, err := store.Restore(ctx)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to restore policy overrides")
		}
		// Persisted operator overrides win over the config file.
		for name, o := range restored {
			overrides[name] = o
		}
	}

	classes, err := resourceclass.NewDirectoryWithOverrides(overrides)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid class overrides")
	}

	facts := factstore.New()
	txns := transaction.NewCoordinator(1)

	oracle, err := buildOracle(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization oracle")
	}

	engine, err := buildRuleEngine(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize rule engine")
	}

	bus, err := buildBus(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize transport")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing transport")
		}
	}()

	var hub *ws.Hub
	outbound := transport.Bus(bus)
	if cfg.Transport.WebSocketEnabled {
		hub = ws.NewHub()
		outbound = transport.NewTee(bus, hub)
	}

	manager := arbiter.New(arbiter.Config{
		Store:         facts,
		Classes:       classes,
		Txns:          txns,
		Engine:        engine,
		Transport:     outbound,
		Oracle:        oracle,
		DefaultAccept: cfg.Authz.DefaultAccept,
	})
	dispatcher := arbiter.NewDispatcher(manager)

	proxies := notifyproxy.NewRegistry(notifyproxy.RegistryConfig{
		Manager:  manager,
		Engine:   engine,
		Backend:  notifyproxy.NopBackend{},
		Notifier: outbound,
	})
	handler := notifyproxy.NewBusHandler(proxies, engine, 0, dispatcher)

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Bus listener: inbound client requests feed the dispatcher until
	// shutdown. Loss of the broker at startup is fatal (buildBus); loss at
	// runtime restarts this service under the tree.
	tree.AddBusService(serviceFunc(func(ctx context.Context) error {
		return bus.Run(ctx, handler)
	}))

	if hub != nil {
		tree.AddBusService(serviceFunc(hub.RunWithContext))
	}

	if store != nil && cfg.Persistence.GCInterval > 0 {
		tree.AddStoreService(serviceFunc(func(ctx context.Context) error {
			ticker := time.NewTicker(cfg.Persistence.GCInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := store.RunGC(ctx); err != nil {
						logging.Debug().Err(err).Msg("policy-override store GC")
					}
				}
			}
		}))
	}

	if cfg.Web.Enabled {
		apiServer := api.NewServer(cfg.Web, manager, txns, hub, nil)
		tree.AddAPIService(apiServer)
	}

	logging.Info().Msg("resourced started")
	err = tree.Serve(ctx)
	if err != nil && err != context.Canceled && err != suture.ErrTerminateSupervisorTree {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("resourced stopped")
}

// buildOracle wires the Casbin enforcer behind the registration-time
// authorization oracle.
func buildOracle(ctx context.Context, cfg *config.Config) (*authz.Service, error) {
	enforcer, err := authz.NewEnforcer(ctx, &authz.EnforcerConfig{
		ModelPath:      cfg.Authz.ModelPath,
		PolicyPath:     cfg.Authz.PolicyPath,
		AutoReload:     cfg.Authz.AutoReload,
		ReloadInterval: cfg.Authz.ReloadInterval,
		CacheEnabled:   cfg.Authz.CacheEnabled,
		CacheTTL:       cfg.Authz.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return authz.NewService(authz.ServiceConfig{
		DefaultAccept: cfg.Authz.DefaultAccept,
		Enforcer:      enforcer,
	})
}

// buildRuleEngine selects the policy backend. "builtin" returns nil so
// the arbitration manager resolves with its built-in class/priority
// arbitrator; anything else wraps the in-process registration surface in
// a circuit breaker, ready for an installation's rule plug-in to
// register goals against.
func buildRuleEngine(cfg *config.Config) (ruleengine.Engine, error) {
	switch cfg.RuleEngine.Backend {
	case "builtin":
		return nil, nil
	default:
		inner := ruleengine.NewInProcess()
		return ruleengine.NewBreakingEngine(inner, ruleengine.CircuitBreakerConfig{
			Name:                "rule-engine",
			MaxRequests:         cfg.RuleEngine.BreakerMaxRequests,
			ConsecutiveFailures: cfg.RuleEngine.BreakerMinRequests,
		}), nil
	}
}

// buildBus selects the client transport per configuration.
func buildBus(cfg *config.Config) (transport.Bus, error) {
	switch cfg.Transport.Kind {
	case "nats":
		url := cfg.Transport.NATSURL
		if cfg.Transport.NATSEmbedded {
			// An empty URL makes the bus start its own in-process broker.
			url = ""
		}
		return transport.NewBus(url)
	default:
		return transport.NewLoopback(), nil
	}
}
