// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package config

import "time"

// Config holds all application configuration loaded from defaults, an
// optional config file, and environment variables (in that order of
// precedence - see koanf.go's LoadWithKoanf).
//
// Configuration Categories:
//
//  1. Transport: the message bus resource-set clients register, update,
//     acquire, and release over.
//  2. Classes: per-installation overrides of the built-in resource-class
//     table without recompiling.
//  3. Authz: the registration-time authorization oracle.
//  4. RuleEngine: in-process vs. external policy backend, and the circuit
//     breaker that protects the single-threaded loop from a wedged one.
//  5. Persistence: the policy-override key-value store.
//  6. Web: the read-only admin/debug HTTP surface.
//  7. Logging: zerolog output settings.
//
// Config is immutable after Load() and safe for concurrent read access
// from multiple goroutines.
type Config struct {
	Transport   TransportConfig          `koanf:"transport"`
	Classes     map[string]ClassOverride `koanf:"classes"`
	Authz       AuthzConfig              `koanf:"authz"`
	RuleEngine  RuleEngineConfig         `koanf:"rule_engine"`
	Persistence PersistenceConfig        `koanf:"persistence"`
	Web         WebConfig                `koanf:"web"`
	Logging     LoggingConfig            `koanf:"logging"`
}

// TransportConfig selects and configures the abstract transport
// resource-set clients use to send register/update/acquire/release/audio/
// video requests and receive grant/advice signals.
//
// Environment Variables:
//   - TRANSPORT_KIND: "nats" or "loopback" (default: loopback)
//   - TRANSPORT_NATS_URL: NATS server connection URL
//   - TRANSPORT_NATS_EMBEDDED: run an embedded nats-server instead of
//     dialing an external one (default: true)
//   - TRANSPORT_SERVICE_NAME: must be non-empty; the bus subjects are
//     fixed (resourced.requests, resourced.notify.<client address>) and
//     do not use this value
//   - TRANSPORT_REQUEST_TIMEOUT: must be positive; the transports do not
//     apply it to any round trip
//   - TRANSPORT_WEBSOCKET_ENABLED: also serve grant/advice push over a
//     gorilla/websocket endpoint for non-bus clients (debug console)
//   - TRANSPORT_WEBSOCKET_ADDR: must be non-empty when the websocket is
//     enabled; the push endpoint itself is served by the admin HTTP server
//     at /api/v1/ws on WEB_ADDR, not on this address
type TransportConfig struct {
	Kind             string        `koanf:"kind"`
	NATSURL          string        `koanf:"nats_url"`
	NATSEmbedded     bool          `koanf:"nats_embedded"`
	ServiceName      string        `koanf:"service_name"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	WebSocketEnabled bool          `koanf:"websocket_enabled"`
	WebSocketAddr    string        `koanf:"websocket_addr" validate:"omitempty,hostname_port"`
}

// ClassOverride adjusts a built-in resource class's allowed/shared masks
// (see internal/resource's static table) without recompiling, mirroring
// the pattern of typed config blocks layered over compiled-in defaults.
//
// An override only needs to name the fields it changes; fields left nil
// keep the compiled-in value for that class.
type ClassOverride struct {
	Allowed []string `koanf:"allowed"`
	Shared  []string `koanf:"shared"`
	Public  *bool    `koanf:"public"`
	Share   *bool    `koanf:"share"`
}

// AuthzConfig configures the Casbin-backed registration authorization
// oracle (internal/authz).
//
// Environment Variables:
//   - AUTHZ_MODEL_PATH: path to the Casbin model file (empty = embedded)
//   - AUTHZ_POLICY_PATH: path to the Casbin policy file (empty = embedded)
//   - AUTHZ_AUTO_RELOAD: enable automatic policy reload (default: true)
//   - AUTHZ_RELOAD_INTERVAL: policy reload interval (default: 30s)
//   - AUTHZ_CACHE_ENABLED: enable authorization decision caching (default: true)
//   - AUTHZ_CACHE_TTL: authorization cache TTL (default: 5m)
//   - AUTHZ_DEFAULT_ACCEPT: per-installation default for classes with no
//     matching policy rule and no credentials presented (default: false)
type AuthzConfig struct {
	ModelPath      string        `koanf:"model_path" validate:"omitempty,filepath"`
	PolicyPath     string        `koanf:"policy_path" validate:"omitempty,filepath"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	DefaultAccept  bool          `koanf:"default_accept"`
}

// RuleEngineConfig selects the policy backend consulted by the
// Arbitration Manager before falling through to the built-in arbitrator
//, and the gobreaker settings that protect the
// single-threaded event loop from a wedged external backend.
//
// Environment Variables:
//   - RULE_ENGINE_BACKEND: "builtin" or "external" (default: builtin);
//     "external" runs the in-process rule registry behind the breaker
//   - RULE_ENGINE_EXTERNAL_ADDR: required when the backend is external;
//     the daemon does not dial it
//   - RULE_ENGINE_CALL_TIMEOUT: must be positive when the backend is
//     external (default: 200ms); no per-call deadline is applied
//   - RULE_ENGINE_BREAKER_MAX_REQUESTS: half-open trial request count
//   - RULE_ENGINE_BREAKER_INTERVAL, RULE_ENGINE_BREAKER_TIMEOUT: loaded
//     but not passed to the breaker, which keeps gobreaker's defaults
//   - RULE_ENGINE_BREAKER_MIN_REQUESTS: number of consecutive failed calls
//     that trips the breaker
//   - RULE_ENGINE_BREAKER_FAILURE_RATIO: must be in (0, 1] when the
//     backend is external; the breaker does not trip on a failure ratio
type RuleEngineConfig struct {
	Backend             string        `koanf:"backend"`
	ExternalAddr        string        `koanf:"external_addr"`
	CallTimeout         time.Duration `koanf:"call_timeout"`
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// PersistenceConfig configures the badger-backed policy-override store
// - the only state the daemon persists across restarts. Live
// resource-set/transaction/queue state is deliberately NOT persisted
// here; it is rebuilt from scratch as clients re-register.
//
// Environment Variables:
//   - PERSISTENCE_ENABLED: persist policy overrides to disk (default: true)
//   - PERSISTENCE_DIR: badger data directory
//   - PERSISTENCE_SYNC_WRITES: fsync every write (default: false, durability
//     vs. throughput tradeoff)
//   - PERSISTENCE_GC_INTERVAL: badger value-log GC interval (default: 10m)
type PersistenceConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Dir        string        `koanf:"dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// WebConfig configures the read-only chi admin/debug HTTP surface
// (internal/api) used to introspect live resource sets, classes, and
// transactions.
//
// Environment Variables:
//   - WEB_ENABLED: serve the admin/debug surface (default: true)
//   - WEB_ADDR: listen address (default: 127.0.0.1:8870)
//   - WEB_SWAGGER_ENABLED: serve swagger UI/JSON (default: true)
//   - WEB_RATE_LIMIT_REQS: requests per window per client (default: 60)
//   - WEB_RATE_LIMIT_WINDOW: rate-limit window (default: 1m)
//   - WEB_CORS_ORIGINS: comma-separated list of allowed CORS origins
//   - WEB_JWT_SECRET: when set, every data endpoint requires a bearer
//     token signed with this HS256 secret; health stays open for probes
type WebConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr" validate:"omitempty,hostname_port"`
	SwaggerEnabled  bool          `koanf:"swagger_enabled"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	JWTSecret       string        `koanf:"jwt_secret"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console. JSON is recommended
	// for production; console is human-readable for development.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}
