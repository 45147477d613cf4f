// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/resarbiter/resourced/internal/resource"
)

// structValidator enforces the format-level `validate` tags on Config
// (address shapes, file paths); the semantic cross-field rules below
// stay hand-written.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that required configuration is present and well-formed,
// failing fast at startup.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateClasses(); err != nil {
		return err
	}
	if err := c.validateAuthz(); err != nil {
		return err
	}
	if err := c.validateRuleEngine(); err != nil {
		return err
	}
	if err := c.validatePersistence(); err != nil {
		return err
	}
	if err := c.validateWeb(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTransport() error {
	switch c.Transport.Kind {
	case "nats", "loopback":
	default:
		return fmt.Errorf("TRANSPORT_KIND must be \"nats\" or \"loopback\", got: %q", c.Transport.Kind)
	}
	if c.Transport.Kind == "nats" && !c.Transport.NATSEmbedded {
		if c.Transport.NATSURL == "" {
			return fmt.Errorf("TRANSPORT_NATS_URL is required when TRANSPORT_KIND=nats and TRANSPORT_NATS_EMBEDDED=false")
		}
		if err := validateNATSURL(c.Transport.NATSURL); err != nil {
			return fmt.Errorf("TRANSPORT_NATS_URL is invalid: %w", err)
		}
	}
	if c.Transport.ServiceName == "" {
		return fmt.Errorf("TRANSPORT_SERVICE_NAME is required")
	}
	if c.Transport.RequestTimeout <= 0 {
		return fmt.Errorf("TRANSPORT_REQUEST_TIMEOUT must be positive")
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		return fmt.Errorf("TRANSPORT_WEBSOCKET_ADDR is required when TRANSPORT_WEBSOCKET_ENABLED=true")
	}
	return nil
}

// validateClasses rejects overrides that name an unknown built-in class or
// an unknown resource, and overrides that name both lists with a shared
// list that is not a subset of their own allowed list. The override is
// not compared against the class's compiled-in masks.
func (c *Config) validateClasses() error {
	for name, override := range c.Classes {
		if _, ok := resource.Find(name); !ok {
			return fmt.Errorf("classes.%s: not a known resource class", name)
		}
		if _, err := parseMaskNames(override.Allowed); err != nil {
			return fmt.Errorf("classes.%s.allowed: %w", name, err)
		}
		shared, err := parseMaskNames(override.Shared)
		if err != nil {
			return fmt.Errorf("classes.%s.shared: %w", name, err)
		}
		allowed, _ := parseMaskNames(override.Allowed)
		if len(override.Allowed) > 0 && shared&^allowed != 0 {
			return fmt.Errorf("classes.%s: shared mask is not a subset of the allowed mask", name)
		}
	}
	return nil
}

// parseMaskNames resolves a list of resource names into a combined Mask,
// the override-loading counterpart of resource.ParseName.
func parseMaskNames(names []string) (resource.Mask, error) {
	var m resource.Mask
	for _, n := range names {
		bit, err := resource.ParseName(n)
		if err != nil {
			return 0, err
		}
		m |= bit
	}
	return m, nil
}

func (c *Config) validateAuthz() error {
	if c.Authz.CacheEnabled && c.Authz.CacheTTL <= 0 {
		return fmt.Errorf("AUTHZ_CACHE_TTL must be positive when AUTHZ_CACHE_ENABLED=true")
	}
	if c.Authz.AutoReload && c.Authz.ReloadInterval <= 0 {
		return fmt.Errorf("AUTHZ_RELOAD_INTERVAL must be positive when AUTHZ_AUTO_RELOAD=true")
	}
	return nil
}

func (c *Config) validateRuleEngine() error {
	switch c.RuleEngine.Backend {
	case "builtin", "external":
	default:
		return fmt.Errorf("RULE_ENGINE_BACKEND must be \"builtin\" or \"external\", got: %q", c.RuleEngine.Backend)
	}
	if c.RuleEngine.Backend == "external" {
		if c.RuleEngine.ExternalAddr == "" {
			return fmt.Errorf("RULE_ENGINE_EXTERNAL_ADDR is required when RULE_ENGINE_BACKEND=external")
		}
		if c.RuleEngine.CallTimeout <= 0 {
			return fmt.Errorf("RULE_ENGINE_CALL_TIMEOUT must be positive")
		}
		if c.RuleEngine.BreakerFailureRatio <= 0 || c.RuleEngine.BreakerFailureRatio > 1 {
			return fmt.Errorf("RULE_ENGINE_BREAKER_FAILURE_RATIO must be in (0, 1]")
		}
	}
	return nil
}

func (c *Config) validatePersistence() error {
	if c.Persistence.Enabled {
		if c.Persistence.Dir == "" {
			return fmt.Errorf("PERSISTENCE_DIR is required when PERSISTENCE_ENABLED=true")
		}
		if c.Persistence.GCInterval <= 0 {
			return fmt.Errorf("PERSISTENCE_GC_INTERVAL must be positive")
		}
	}
	return nil
}

func (c *Config) validateWeb() error {
	if !c.Web.Enabled {
		return nil
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("WEB_ADDR is required when WEB_ENABLED=true")
	}
	if c.Web.RateLimitReqs <= 0 {
		return fmt.Errorf("WEB_RATE_LIMIT_REQS must be positive")
	}
	if c.Web.RateLimitWindow <= 0 {
		return fmt.Errorf("WEB_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\" or \"console\", got: %q", c.Logging.Format)
	}
	return nil
}
