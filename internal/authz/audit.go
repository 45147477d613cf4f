// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package authz

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resarbiter/resourced/internal/logging"
)

// RegistrationAudit is the record of one registration authorization
// decision: which client, presenting which credentials, asked for which
// class, and what the oracle said. Denials are the interesting half —
// they are what a platform integrator greps for when an application
// cannot obtain its class.
type RegistrationAudit struct {
	// ID uniquely identifies this audit record.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// ClientID is the registering client's self-chosen identifier.
	ClientID string `json:"client_id,omitempty"`

	// ClientAddr is the client's transport address.
	ClientAddr string `json:"client_addr,omitempty"`

	// Credentials is the list the client presented with the `creds`
	// method; empty for ungated registrations.
	Credentials []string `json:"credentials,omitempty"`

	// Class is the policy class the client asked to register under.
	Class string `json:"class"`

	// Allowed is the oracle's decision.
	Allowed bool `json:"allowed"`

	// Reason explains the decision (which credential matched, or why
	// nothing did).
	Reason string `json:"reason,omitempty"`

	// Duration is how long the decision took, cache included.
	Duration time.Duration `json:"duration_ns"`
}

// AuditLoggerConfig tunes the audit trail.
type AuditLoggerConfig struct {
	// Enabled turns the trail on. Disabled, Record is a no-op.
	Enabled bool

	// LogAllowed includes successful registrations. Denials are always
	// recorded while Enabled; allowed decisions are the volume knob.
	LogAllowed bool

	// BufferSize is the async buffer between the arbitration loop and
	// the log writer. Record never blocks: overflow drops the event and
	// counts it.
	BufferSize int
}

// DefaultAuditLoggerConfig records everything with a buffer deep enough
// for a registration storm at daemon startup.
func DefaultAuditLoggerConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		Enabled:    true,
		LogAllowed: true,
		BufferSize: 256,
	}
}

// AuditLogger writes RegistrationAudit records to the structured log
// asynchronously, so a slow log sink can never stall a register call.
type AuditLogger struct {
	config   *AuditLoggerConfig
	events   chan *RegistrationAudit
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditLogger starts the audit writer.
func NewAuditLogger(config *AuditLoggerConfig) *AuditLogger {
	if config == nil {
		config = DefaultAuditLoggerConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	al := &AuditLogger{
		config:   config,
		events:   make(chan *RegistrationAudit, config.BufferSize),
		stopChan: make(chan struct{}),
	}
	if config.Enabled {
		al.wg.Add(1)
		go al.run()
	}
	return al
}

// Record queues one decision for the trail. Non-blocking; a full buffer
// drops the event and increments the dropped counter.
func (al *AuditLogger) Record(event *RegistrationAudit) {
	if al == nil || !al.config.Enabled {
		return
	}
	if event.Allowed && !al.config.LogAllowed {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case al.events <- event:
		RecordAuditQueued(event.Allowed)
	default:
		RecordAuditDropped()
		logging.Warn().
			Str("class", event.Class).
			Str("client_id", event.ClientID).
			Msg("authz: audit buffer full, event dropped")
	}
}

func (al *AuditLogger) run() {
	defer al.wg.Done()
	for {
		select {
		case <-al.stopChan:
			// Drain what is already queued, then stop.
			for {
				select {
				case event := <-al.events:
					al.write(event)
				default:
					return
				}
			}
		case event := <-al.events:
			al.write(event)
		}
	}
}

// write emits one record. Denials go out at warn so they surface in a
// default-level log without grepping.
func (al *AuditLogger) write(event *RegistrationAudit) {
	le := logging.Info()
	msg := "registration allowed"
	if !event.Allowed {
		le = logging.Warn()
		msg = "registration denied"
	}

	le = le.
		Str("event_type", "registration_decision").
		Str("audit_id", event.ID).
		Time("audit_timestamp", event.Timestamp).
		Str(logging.FieldClass, event.Class).
		Bool("allowed", event.Allowed).
		Dur("duration", event.Duration)

	if event.ClientID != "" {
		le = le.Str("client_id", event.ClientID)
	}
	if event.ClientAddr != "" {
		le = le.Str("client_addr", event.ClientAddr)
	}
	if len(event.Credentials) > 0 {
		le = le.Strs("credentials", event.Credentials)
	}
	if event.Reason != "" {
		le = le.Str("reason", event.Reason)
	}
	le.Msg(msg)
}

// Close flushes queued events and stops the writer. Safe to call twice.
func (al *AuditLogger) Close() {
	if al == nil {
		return
	}
	al.stopOnce.Do(func() { close(al.stopChan) })
	al.wg.Wait()
}

// BufferUsage reports queue occupancy for introspection.
func (al *AuditLogger) BufferUsage() (used, capacity int) {
	if al == nil {
		return 0, 0
	}
	return len(al.events), al.config.BufferSize
}
