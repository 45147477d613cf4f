// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package authz provides the registration-time authorization oracle using
// Casbin.
//
// register asks this package whether a resource-set may
// register under a given class when that class's auth method is `creds`:
// the client presents a comma-separated credential list (ParseCredentials),
// Service.Authorize checks each credential against the class via Casbin,
// and classes with no matching policy entry fall back to the
// per-installation accept/reject default (ServiceConfig.DefaultAccept).
//
// # RBAC Model
//
// The package uses Casbin's ACL model with role inheritance:
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[role_definition]
//	g = _, _
//
//	[policy_effect]
//	e = some(where (p.eft == allow))
//
//	[matchers]
//	m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
//
// # Policy Definition
//
// Policies are defined in CSV format, subjects are credential names and
// objects are resource-class names:
//
//	p, telephony, call, register
//	p, telephony, ringtone, register
//	p, system, navigator, register
//	g, any, public
//	g, telephony, public
//
// # Usage Example
//
//	enforcer, err := authz.NewEnforcer(ctx, authz.DefaultEnforcerConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer enforcer.Close()
//
//	oracle, err := authz.NewService(authz.ServiceConfig{Enforcer: enforcer})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	allowed, err := oracle.Authorize(ctx, "call", authz.ParseCredentials("telephony"))
//
// # Configuration Options
//
// The EnforcerConfig supports:
//
//	cfg := &authz.EnforcerConfig{
//	    ModelPath:      "",              // Path to model file (empty = embedded)
//	    PolicyPath:     "",              // Path to policy file (empty = embedded)
//	    AutoReload:     true,            // Enable hot policy reload
//	    ReloadInterval: 30 * time.Second, // Policy check interval
//	    DefaultRole:    "public",        // Role for clients presenting no credentials
//	    CacheEnabled:   true,            // Enable decision caching
//	    CacheTTL:       5 * time.Minute, // Cache TTL
//	}
//
// # Embedded Policies
//
// The package embeds default model and policy files for zero-configuration setup:
//   - model.conf: RBAC model with role hierarchy
//   - policy.csv: the default credential-role to class mapping
//
// # Caching
//
// Registration decisions are memoized per (credential, class):
//   - Role grants/revocations invalidate only that credential's entries
//   - Policy mutations and reloads reset the whole cache
//   - Entries expire on a TTL so out-of-band policy-file edits take
//     effect even with auto-reload off
//
// # Thread Safety
//
// All components are safe for concurrent use:
//   - Casbin SyncedEnforcer provides built-in synchronization
//   - Cache uses sync.RWMutex for concurrent access
//   - Policy auto-reload runs in a separate goroutine
//
// # Performance
//
//   - Enforcement check: <100us (with cache hit)
//   - Cache miss: ~1ms (Casbin evaluation)
//   - Policy reload: ~10ms for typical policy files
//
// # See Also
//
//   - internal/arbiter: the Arbitration Manager, whose Register consults
//     this oracle synchronously; registrations are not parked while it runs
//   - github.com/casbin/casbin/v2: underlying authorization library
package authz
