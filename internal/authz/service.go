// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package authz also exposes the authorization oracle consulted during
// resource-set registration. The oracle itself is a
// synchronous Casbin lookup, and internal/arbiter's Register calls
// Service.Authorize inline; registrations are not parked while it runs.
package authz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/resarbiter/resourced/internal/logging"
)

// ErrNoCredentials is returned when a class requires credentials but the
// caller supplied none.
type ErrNoCredentials struct {
	Class string
}

func (e *ErrNoCredentials) Error() string {
	return fmt.Sprintf("class %q requires credentials but none were presented", e.Class)
}

// ServiceConfig configures the registration-time authorization oracle.
type ServiceConfig struct {
	// DefaultAccept is the fallback decision for classes with no explicit
	// policy entry (the per-installation accept/reject default).
	DefaultAccept bool

	// Enforcer is the underlying Casbin wrapper. Required.
	Enforcer *Enforcer

	// Audit, if non-nil, receives a record of every decision.
	Audit *AuditLogger
}

// Service is the registration-time authorization oracle: given the
// credentials a resource-set presents and the class it is registering
// under, it decides allow/deny.
type Service struct {
	cfg ServiceConfig
}

// NewService builds an authorization oracle around an existing enforcer.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Enforcer == nil {
		return nil, fmt.Errorf("authz: NewService requires a non-nil Enforcer")
	}
	return &Service{cfg: cfg}, nil
}

// Authorize decides whether a resource-set may register under className,
// given the credential list presented by the registering client (as parsed
// from the `creds` method, see ParseCredentials). An empty list is valid
// for classes that don't gate on credentials.
func (s *Service) Authorize(ctx context.Context, className string, credentials []string) (bool, error) {
	start := time.Now()
	allowed, reason, err := s.authorize(className, credentials)
	duration := time.Since(start)

	if s.cfg.Audit != nil {
		s.cfg.Audit.Record(&RegistrationAudit{
			Credentials: credentials,
			Class:       className,
			Allowed:     allowed,
			Reason:      reason,
			Duration:    duration,
		})
	}

	RecordDecision(className, allowed, duration)

	if err != nil {
		logging.Error().Err(err).Str(logging.FieldClass, className).Msg("authorization oracle query failed")
		return false, err
	}
	return allowed, nil
}

func (s *Service) authorize(className string, credentials []string) (bool, string, error) {
	if len(credentials) == 0 {
		allowed, err := s.cfg.Enforcer.CanRegister("any", className)
		if err != nil {
			return false, "", err
		}
		if allowed {
			return true, "public class", nil
		}
		if len(s.cfg.Enforcer.GetFilteredPolicy(1, className)) > 0 {
			return false, "class requires credentials but none were presented", nil
		}
		return s.cfg.DefaultAccept, "class has no policy entry, installation default applied", nil
	}

	for _, cred := range credentials {
		allowed, err := s.cfg.Enforcer.CanRegister(cred, className)
		if err != nil {
			return false, "", err
		}
		if allowed {
			return true, fmt.Sprintf("credential %q grants access", cred), nil
		}
	}
	return false, "no presented credential grants access to this class", nil
}

// RequiredCredentials returns the credential names a class's policy grants
// access through, read live from the enforcer's policy rather than a
// compiled-in table. The public role, which every client reaches, is not
// listed, so a public-only class yields an empty list.
func (s *Service) RequiredCredentials(className string) []string {
	rules := s.cfg.Enforcer.GetFilteredPolicy(1, className)
	creds := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) > 0 && rule[0] != "any" && rule[0] != "public" {
			creds = append(creds, rule[0])
		}
	}
	return creds
}

// ParseCredentials splits the comma-separated credential list carried by
// the `creds` registration method
// into individual credential names.
func ParseCredentials(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
