// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newCapturedSlog(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return NewSlogLogger(), &buf
}

func TestSlogLevelsMapOntoZerolog(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	logger.Info("service started")
	logger.Warn("service backoff")
	logger.Error("service failed")

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"level":"warn"`, `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
	if !strings.Contains(out, `"component":"supervisor"`) {
		t.Errorf("supervisor component tag missing: %s", out)
	}
}

func TestSlogRespectsRootLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	logger := NewSlogLogger()
	logger.Info("restart notice")
	if strings.Contains(buf.String(), "restart notice") {
		t.Errorf("info should be suppressed at warn root level: %s", buf.String())
	}
	logger.Error("terminal failure")
	if !strings.Contains(buf.String(), "terminal failure") {
		t.Error("error should pass at warn root level")
	}
}

func TestSlogAttrTypes(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	logger.Info("restarting",
		slog.String("service", "bus-listener"),
		slog.Int("failures", 3),
		slog.Bool("backoff", true),
		slog.Duration("wait", 15*time.Second),
	)

	out := buf.String()
	for _, want := range []string{`"service":"bus-listener"`, `"failures":3`, `"backoff":true`, `"wait":15000`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestSlogWithAttrsPersist(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	child := logger.With(slog.String("supervisor", "bus-layer"))
	child.Info("first")
	child.Info("second")

	if got := strings.Count(buf.String(), `"supervisor":"bus-layer"`); got != 2 {
		t.Errorf("persistent attr appeared %d times, want 2: %s", got, buf.String())
	}
}

func TestSlogGroupsBecomeDottedKeys(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	logger.WithGroup("restart").Info("backoff entered", slog.Int("count", 5))

	if !strings.Contains(buf.String(), `"restart.count":5`) {
		t.Errorf("group prefix missing: %s", buf.String())
	}
}

func TestSlogInlineGroupAttr(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	logger.Info("tree state", slog.Group("failures", slog.Int("recent", 2)))

	if !strings.Contains(buf.String(), `"failures.recent":2`) {
		t.Errorf("inline group flattening missing: %s", buf.String())
	}
}
