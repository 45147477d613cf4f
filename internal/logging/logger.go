// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package logging is the daemon's zerolog layer: one process-wide root
// logger, JSON in production and console for development, with helpers
// that stamp arbitration identifiers (manager_id, txid, class) onto log
// events so a grant can be traced from inbound request to outbound
// notification.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Field names shared by every subsystem. Keeping them here means a log
// query for one manager_id matches the arbiter, the queues, the proxy
// layer, and the admin API alike.
const (
	FieldComponent = "component"
	FieldManagerID = "manager_id"
	FieldTxID      = "txid"
	FieldClass     = "class"
	FieldRequestID = "request_id"
)

// Config selects the root logger's level, format, and destination.
type Config struct {
	// Level is the minimum level emitted: trace, debug, info, warn,
	// error, fatal, panic. Unknown values fall back to info.
	Level string

	// Format is "json" (production) or "console" (development).
	Format string

	// Caller stamps file:line on every event. Off by default; the
	// arbitration loop logs on hot paths.
	Caller bool

	// Timestamp toggles the time field. On by default.
	Timestamp bool

	// Output overrides the destination. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is what the daemon runs with before Init sees the
// loaded configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	rootMu sync.RWMutex
	root   zerolog.Logger
)

//nolint:gochecknoinits // packages log during bootstrap, before main calls Init
func init() {
	configure(DefaultConfig())
}

// Init reconfigures the root logger. Called once from main after the
// configuration is loaded; safe to call again (tests do).
func Init(cfg Config) {
	configure(cfg)
}

func configure(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	lc := zerolog.New(out).Level(level).With()
	if cfg.Timestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}

	rootMu.Lock()
	root = lc.Logger()
	rootMu.Unlock()
}

// Logger returns a copy of the root logger.
func Logger() zerolog.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// With opens a child-logger context on the root logger.
func With() zerolog.Context {
	return Logger().With()
}

// Component returns a child logger tagged for one subsystem, e.g.
// Component("transaction") or Component("notifyproxy").
func Component(name string) zerolog.Logger {
	return With().Str(FieldComponent, name).Logger()
}

// SetLevelString adjusts the root logger's minimum level at runtime
// (admin/debug use). Unknown names are ignored.
func SetLevelString(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	rootMu.Lock()
	root = root.Level(parsed)
	rootMu.Unlock()
}

// Trace starts a trace-level event on the root logger.
func Trace() *zerolog.Event { l := Logger(); return l.Trace() }

// Debug starts a debug-level event on the root logger.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info-level event on the root logger.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warn-level event on the root logger.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error-level event on the root logger.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal-level event; the terminating Msg exits the
// process. Reserved for bootstrap failures (lost bus, bad config).
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// Panic starts a panic-level event; the terminating Msg panics.
func Panic() *zerolog.Event { l := Logger(); return l.Panic() }

// Err starts an error-level event carrying err, or an info-level event
// when err is nil.
func Err(err error) *zerolog.Event { l := Logger(); return l.Err(err) }

// NewTestLogger returns a logger writing plain JSON to w, for tests that
// assert on output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// NewConsoleTestLogger is NewTestLogger with console formatting, for
// eyeballing test output.
func NewConsoleTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
}
