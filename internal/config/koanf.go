// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/resourced/config.yaml",
	"/etc/resourced/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and
// env vars.
func defaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:             "loopback",
			NATSURL:          "nats://127.0.0.1:4222",
			NATSEmbedded:     true,
			ServiceName:      "resourced",
			RequestTimeout:   2 * time.Second,
			WebSocketEnabled: false,
			WebSocketAddr:    "127.0.0.1:8871",
		},
		Classes: map[string]ClassOverride{},
		Authz: AuthzConfig{
			ModelPath:      "",
			PolicyPath:     "",
			AutoReload:     true,
			ReloadInterval: 30 * time.Second,
			CacheEnabled:   true,
			CacheTTL:       5 * time.Minute,
			DefaultAccept:  false,
		},
		RuleEngine: RuleEngineConfig{
			Backend:             "builtin",
			ExternalAddr:        "",
			CallTimeout:         200 * time.Millisecond,
			BreakerMaxRequests:  5,
			BreakerInterval:     1 * time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Persistence: PersistenceConfig{
			Enabled:    true,
			Dir:        "/data/resourced/policy",
			SyncWrites: false,
			GCInterval: 10 * time.Minute,
		},
		Web: WebConfig{
			Enabled:         true,
			Addr:            "127.0.0.1:8870",
			SwaggerEnabled:  true,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load is an alias for LoadWithKoanf kept for callers (cmd/server) that
// don't need to name the backing layering mechanism.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if present)
//  3. Environment variables: override any setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if cfg.Classes == nil {
		cfg.Classes = map[string]ClassOverride{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are koanf paths that must be parsed as comma-separated
// slices when they arrive from an environment variable.
var sliceConfigPaths = []string{
	"web.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. This is necessary because env vars come in as
// strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths, e.g. TRANSPORT_NATS_URL -> transport.nats_url.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"transport_kind":             "transport.kind",
		"transport_nats_url":         "transport.nats_url",
		"transport_nats_embedded":    "transport.nats_embedded",
		"transport_service_name":     "transport.service_name",
		"transport_request_timeout":  "transport.request_timeout",
		"transport_websocket_enabled": "transport.websocket_enabled",
		"transport_websocket_addr":   "transport.websocket_addr",

		"authz_model_path":      "authz.model_path",
		"authz_policy_path":     "authz.policy_path",
		"authz_auto_reload":     "authz.auto_reload",
		"authz_reload_interval": "authz.reload_interval",
		"authz_cache_enabled":   "authz.cache_enabled",
		"authz_cache_ttl":       "authz.cache_ttl",
		"authz_default_accept":  "authz.default_accept",

		"rule_engine_backend":                "rule_engine.backend",
		"rule_engine_external_addr":          "rule_engine.external_addr",
		"rule_engine_call_timeout":           "rule_engine.call_timeout",
		"rule_engine_breaker_max_requests":   "rule_engine.breaker_max_requests",
		"rule_engine_breaker_interval":       "rule_engine.breaker_interval",
		"rule_engine_breaker_timeout":        "rule_engine.breaker_timeout",
		"rule_engine_breaker_min_requests":   "rule_engine.breaker_min_requests",
		"rule_engine_breaker_failure_ratio":  "rule_engine.breaker_failure_ratio",

		"persistence_enabled":     "persistence.enabled",
		"persistence_dir":         "persistence.dir",
		"persistence_sync_writes": "persistence.sync_writes",
		"persistence_gc_interval": "persistence.gc_interval",

		"web_enabled":           "web.enabled",
		"web_addr":              "web.addr",
		"web_swagger_enabled":   "web.swagger_enabled",
		"web_rate_limit_reqs":   "web.rate_limit_reqs",
		"web_rate_limit_window": "web.rate_limit_window",
		"web_cors_origins":      "web.cors_origins",
		"web_jwt_secret":        "web.jwt_secret",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables don't
	// pollute config.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage such as
// hot-reload scenarios or testing with mock configuration sources.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when accessing configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
