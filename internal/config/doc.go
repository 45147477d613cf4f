// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

/*
Package config provides centralized configuration management for the
resource-arbitration daemon.

It handles loading, layering, and validation of all settings the daemon
needs at startup: the transport clients register/acquire/release over,
per-installation resource-class overrides, the registration authorization
oracle, the policy rule-engine backend, the policy-override persistence
store, the admin/debug HTTP surface, and logging.

# Configuration Sources

Configuration loads in three layers, later layers overriding earlier ones:

  1. Defaults: built-in sensible values (defaultConfig in koanf.go)
  2. Config file: optional YAML file, found via CONFIG_PATH or one of
     DefaultConfigPaths
  3. Environment variables: highest priority, mapped through
     envTransformFunc

# Configuration Structure

  - TransportConfig: message bus selection (nats/loopback) and timeouts
  - ClassOverride: per-class allowed/shared mask and public/sharing
    overrides keyed by class name
  - AuthzConfig: Casbin model/policy paths and decision-cache settings
  - RuleEngineConfig: builtin vs. external policy backend plus the
    gobreaker circuit-breaker settings guarding it
  - PersistenceConfig: badger data directory and GC interval
  - WebConfig: admin/debug HTTP listen address, swagger, rate limiting,
    CORS origins
  - LoggingConfig: zerolog level/format/caller settings

# Environment Variables

Env vars are upper-cased, underscore-separated names mapping to koanf
dotted paths, for example:

  - TRANSPORT_KIND: "nats" or "loopback" (default: loopback)
  - TRANSPORT_NATS_URL: NATS server connection URL
  - AUTHZ_MODEL_PATH / AUTHZ_POLICY_PATH: Casbin model/policy file paths
  - RULE_ENGINE_BACKEND: "builtin" or "external"
  - PERSISTENCE_DIR: badger data directory
  - WEB_ADDR: admin/debug HTTP listen address
  - LOG_LEVEL / LOG_FORMAT: zerolog settings

See each *Config type's doc comment in config.go for the complete list
scoped to that section.

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to load config")
	}
	fmt.Printf("transport: %s\n", cfg.Transport.Kind)

# Validation

Validate (config_validate.go) fails fast on malformed settings: an
invalid transport kind, a class override naming an unknown resource, an
external rule-engine backend missing its address, a malformed NATS URL,
and so on. A validation failure is treated as a fatal startup error, the
same class of failure as missing mandatory
configuration.

# Thread Safety

The Config struct is immutable after Load() returns and is safe for
concurrent read access from multiple goroutines without synchronization.
WatchConfigFile supports hot-reload for callers that need it, with the
caller responsible for swapping in the new *Config under its own mutex.
*/
package config
