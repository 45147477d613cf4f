// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package authz

import (
	"bytes"
	"strings"
	"testing"

	"github.com/resarbiter/resourced/internal/logging"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })
	return &buf
}

func TestAuditRecordsDenial(t *testing.T) {
	buf := captureLog(t)
	al := NewAuditLogger(DefaultAuditLoggerConfig())

	al.Record(&RegistrationAudit{
		ClientID:    "dialer",
		Credentials: []string{"bogus"},
		Class:       "call",
		Allowed:     false,
		Reason:      "no presented credential grants access to this class",
	})
	al.Close()

	out := buf.String()
	if !strings.Contains(out, "registration denied") {
		t.Fatalf("denial missing from trail: %s", out)
	}
	for _, want := range []string{`"class":"call"`, `"client_id":"dialer"`, `"level":"warn"`, `"allowed":false`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestAuditRecordsAllowedAtInfo(t *testing.T) {
	buf := captureLog(t)
	al := NewAuditLogger(DefaultAuditLoggerConfig())

	al.Record(&RegistrationAudit{
		Credentials: []string{"telephony"},
		Class:       "ringtone",
		Allowed:     true,
		Reason:      `credential "telephony" grants access`,
	})
	al.Close()

	out := buf.String()
	if !strings.Contains(out, "registration allowed") || !strings.Contains(out, `"level":"info"`) {
		t.Errorf("allowed decision should log at info: %s", out)
	}
	if !strings.Contains(out, `"credentials":["telephony"]`) {
		t.Errorf("credential list missing: %s", out)
	}
}

func TestAuditLogAllowedOff(t *testing.T) {
	buf := captureLog(t)
	al := NewAuditLogger(&AuditLoggerConfig{Enabled: true, LogAllowed: false, BufferSize: 8})

	al.Record(&RegistrationAudit{Class: "player", Allowed: true})
	al.Record(&RegistrationAudit{Class: "call", Allowed: false})
	al.Close()

	out := buf.String()
	if strings.Contains(out, "registration allowed") {
		t.Error("allowed decisions should be suppressed when LogAllowed is off")
	}
	if !strings.Contains(out, "registration denied") {
		t.Error("denials must always be recorded while enabled")
	}
}

func TestAuditDisabledIsANoOp(t *testing.T) {
	buf := captureLog(t)
	al := NewAuditLogger(&AuditLoggerConfig{Enabled: false})

	al.Record(&RegistrationAudit{Class: "call", Allowed: false})
	al.Close()

	if strings.Contains(buf.String(), "registration") {
		t.Errorf("disabled trail wrote output: %s", buf.String())
	}
}

func TestAuditFillsIDAndTimestamp(t *testing.T) {
	captureLog(t)
	al := NewAuditLogger(DefaultAuditLoggerConfig())
	defer al.Close()

	event := &RegistrationAudit{Class: "alarm", Allowed: false}
	al.Record(event)

	if event.ID == "" {
		t.Error("Record should assign an id")
	}
	if event.Timestamp.IsZero() {
		t.Error("Record should assign a timestamp")
	}
}

func TestAuditCloseFlushesQueue(t *testing.T) {
	buf := captureLog(t)
	al := NewAuditLogger(&AuditLoggerConfig{Enabled: true, LogAllowed: true, BufferSize: 64})

	for i := 0; i < 10; i++ {
		al.Record(&RegistrationAudit{Class: "event", Allowed: false})
	}
	al.Close()

	if got := strings.Count(buf.String(), "registration denied"); got != 10 {
		t.Errorf("flushed %d events, want 10", got)
	}
}

func TestAuditCloseIsIdempotent(t *testing.T) {
	captureLog(t)
	al := NewAuditLogger(DefaultAuditLoggerConfig())
	al.Close()
	al.Close()
}

func TestAuditBufferUsage(t *testing.T) {
	captureLog(t)
	al := NewAuditLogger(&AuditLoggerConfig{Enabled: false, BufferSize: 32})
	defer al.Close()

	used, capacity := al.BufferUsage()
	if used != 0 || capacity != 32 {
		t.Errorf("BufferUsage = (%d, %d), want (0, 32)", used, capacity)
	}

	var nilLogger *AuditLogger
	if u, c := nilLogger.BufferUsage(); u != 0 || c != 0 {
		t.Errorf("nil logger BufferUsage = (%d, %d), want (0, 0)", u, c)
	}
}
