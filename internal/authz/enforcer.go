// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package authz decides, at registration time, whether a client's
// credentials permit it to create a resource set under a given policy
// class. The decision model is Casbin RBAC: subjects are credential
// names, objects are class names, the action is always "register", and
// grouping rules let gated credentials (telephony, system) inherit the
// public classes.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// registerAction is the single action this daemon ever enforces; the
// triple-form policy survives so an installation can script extra
// actions into its own policy file without a schema change.
const registerAction = "register"

// EnforcerConfig holds configuration for the registration enforcer.
type EnforcerConfig struct {
	// ModelPath overrides the embedded Casbin model. Ignored when the
	// file does not exist, so a stale path degrades to the built-in
	// model instead of refusing to start.
	ModelPath string

	// PolicyPath overrides the embedded class policy the same way.
	PolicyPath string

	// AutoReload re-reads PolicyPath on an interval, picking up
	// operator edits without a restart.
	AutoReload bool

	// ReloadInterval is how often AutoReload checks for changes.
	ReloadInterval time.Duration

	// DefaultRole is the credential role assumed for clients that
	// present no credentials at all. "public" reaches exactly the
	// ungated classes.
	DefaultRole string

	// CacheEnabled memoizes decisions between policy changes.
	CacheEnabled bool

	// CacheTTL bounds how stale a memoized decision may get.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns the production defaults.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		AutoReload:     true,
		ReloadInterval: 30 * time.Second,
		DefaultRole:    "public",
		CacheEnabled:   true,
		CacheTTL:       5 * time.Minute,
	}
}

// Enforcer wraps Casbin with the registration-decision cache and the
// class-policy loading rules above.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer builds the registration enforcer from embedded or
// file-based model/policy per config.
func NewEnforcer(ctx context.Context, config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	m, err := loadModel(config.ModelPath)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicyText(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz: create enforcer: %w", err)
	}

	if config.AutoReload && config.PolicyPath != "" {
		enforcer.StartAutoLoadPolicy(config.ReloadInterval)
	}

	e := &Enforcer{config: config, enforcer: enforcer}
	if config.CacheEnabled {
		e.cache = newDecisionCache(config.CacheTTL)
	}
	return e, nil
}

func loadModel(path string) (model.Model, error) {
	var m model.Model
	var err error
	if path != "" && fileExists(path) {
		m, err = model.NewModelFromFile(path)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}
	return m, nil
}

// loadPolicyText feeds the embedded policy CSV into a string-backed
// enforcer line by line: `p` rows become class-registration rules, `g`
// rows become credential-role groupings, comments and blanks are
// skipped.
func loadPolicyText(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		switch {
		case fields[0] == "p" && len(fields) >= 4:
			if _, err := enforcer.AddPolicy(fields[1], fields[2], fields[3]); err != nil {
				return fmt.Errorf("authz: embedded policy rule %q: %w", line, err)
			}
		case fields[0] == "g" && len(fields) >= 3:
			if _, err := enforcer.AddGroupingPolicy(fields[1], fields[2]); err != nil {
				return fmt.Errorf("authz: embedded grouping rule %q: %w", line, err)
			}
		}
	}
	return nil
}

// CanRegister is the daemon's actual question: may this credential
// create a resource set under class. Decisions are cached per
// (credential, class) until the policy changes or the TTL lapses.
func (e *Enforcer) CanRegister(credential, class string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.lookup(credential, class); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(credential, class, registerAction)
	if err != nil {
		return false, fmt.Errorf("authz: enforce: %w", err)
	}

	if e.cache != nil {
		e.cache.store(credential, class, allowed)
	}
	return allowed, nil
}

// Enforce is the generic triple check, kept for policy administration
// and tests. Register decisions route through the cache; any other
// action goes straight to Casbin.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if action == registerAction {
		return e.CanRegister(subject, object)
	}
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce: %w", err)
	}
	return allowed, nil
}

// EnforceWithRoles checks the subject itself, then each presented role,
// then the installation's default role when no roles were presented.
func (e *Enforcer) EnforceWithRoles(subject string, roles []string, object, action string) (bool, error) {
	if allowed, err := e.Enforce(subject, object, action); err != nil {
		return false, err
	} else if allowed {
		return true, nil
	}

	for _, role := range roles {
		if allowed, err := e.Enforce(role, object, action); err != nil {
			return false, err
		} else if allowed {
			return true, nil
		}
	}

	if e.config.DefaultRole != "" && len(roles) == 0 {
		return e.Enforce(e.config.DefaultRole, object, action)
	}
	return false, nil
}

// AddRoleForUser grants a credential a role. Only that credential's
// cached decisions are invalidated.
func (e *Enforcer) AddRoleForUser(credential, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(credential, role)
	if err != nil {
		return false, fmt.Errorf("authz: add role: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateCredential(credential)
	}
	return added, nil
}

// DeleteRoleForUser revokes a credential's role.
func (e *Enforcer) DeleteRoleForUser(credential, role string) (bool, error) {
	removed, err := e.enforcer.RemoveGroupingPolicy(credential, role)
	if err != nil {
		return false, fmt.Errorf("authz: remove role: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateCredential(credential)
	}
	return removed, nil
}

// GetRolesForUser returns the roles granted to a credential.
func (e *Enforcer) GetRolesForUser(credential string) ([]string, error) {
	return e.enforcer.GetRolesForUser(credential)
}

// GetUsersForRole returns the credentials holding a role.
func (e *Enforcer) GetUsersForRole(role string) ([]string, error) {
	return e.enforcer.GetUsersForRole(role)
}

// AddPolicy adds one registration rule. Policy-wide mutation: the whole
// decision cache resets.
func (e *Enforcer) AddPolicy(subject, object, action string) (bool, error) {
	added, err := e.enforcer.AddPolicy(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("authz: add policy: %w", err)
	}
	if e.cache != nil {
		e.cache.reset()
	}
	return added, nil
}

// RemovePolicy removes one registration rule.
func (e *Enforcer) RemovePolicy(subject, object, action string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("authz: remove policy: %w", err)
	}
	if e.cache != nil {
		e.cache.reset()
	}
	return removed, nil
}

// ErrNoAdapter is returned by Save/LoadPolicy when the enforcer runs on
// the embedded policy and has no file to sync with.
var ErrNoAdapter = errors.New("authz: no policy file configured; running on embedded policy")

// SavePolicy persists runtime policy mutations to the policy file.
func (e *Enforcer) SavePolicy() error {
	if e.config.PolicyPath == "" {
		return ErrNoAdapter
	}
	return e.enforcer.SavePolicy()
}

// LoadPolicy re-reads the policy file and resets the decision cache.
func (e *Enforcer) LoadPolicy() error {
	if e.config.PolicyPath == "" {
		return ErrNoAdapter
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		RecordPolicyReload(false)
		return err
	}
	if e.cache != nil {
		e.cache.reset()
	}
	RecordPolicyReload(true)
	return nil
}

// Close stops the auto-reload poller.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
}

// GetPolicy returns every registration rule.
func (e *Enforcer) GetPolicy() [][]string {
	//nolint:errcheck // only fails on a nil enforcer, which is a programming error
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// GetFilteredPolicy returns rules matching fieldValues at fieldIndex
// (0=credential, 1=class, 2=action).
func (e *Enforcer) GetFilteredPolicy(fieldIndex int, fieldValues ...string) [][]string {
	//nolint:errcheck // only fails on a nil enforcer, which is a programming error
	policies, _ := e.enforcer.GetFilteredPolicy(fieldIndex, fieldValues...)
	return policies
}

// GetGroupingPolicy returns every credential-role grouping.
func (e *Enforcer) GetGroupingPolicy() [][]string {
	//nolint:errcheck // only fails on a nil enforcer, which is a programming error
	policies, _ := e.enforcer.GetGroupingPolicy()
	return policies
}

// AddGroupingPolicy grants a credential a role (g, credential, role).
func (e *Enforcer) AddGroupingPolicy(credential, role string) error {
	if _, err := e.enforcer.AddGroupingPolicy(credential, role); err != nil {
		return fmt.Errorf("authz: add grouping policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateCredential(credential)
	}
	return nil
}

// RemoveGroupingPolicy revokes a credential's role.
func (e *Enforcer) RemoveGroupingPolicy(credential, role string) error {
	if _, err := e.enforcer.RemoveGroupingPolicy(credential, role); err != nil {
		return fmt.Errorf("authz: remove grouping policy: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateCredential(credential)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
