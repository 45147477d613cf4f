// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// supervisorHandler bridges slog onto zerolog for the one consumer in
// this daemon that speaks slog: the suture supervisor tree (via
// sutureslog). Restart storms and backoff events therefore share the
// arbitration log stream instead of going to a second sink.
//
// Suture emits flat attribute lists; WithGroup support is implemented as
// dotted key prefixes, which is all the supervisor's events need.
type supervisorHandler struct {
	logger zerolog.Logger
	prefix string
	attrs  []slog.Attr
}

// NewSlogLogger returns the *slog.Logger handed to the supervisor tree,
// tagged as the supervisor component and backed by the root logger.
func NewSlogLogger() *slog.Logger {
	return slog.New(&supervisorHandler{logger: Component("supervisor")})
}

// slogLevels maps slog's four levels onto zerolog's. Suture only emits
// Info/Warn/Error, but Debug passes through for completeness.
var slogLevels = map[slog.Level]zerolog.Level{
	slog.LevelDebug: zerolog.DebugLevel,
	slog.LevelInfo:  zerolog.InfoLevel,
	slog.LevelWarn:  zerolog.WarnLevel,
	slog.LevelError: zerolog.ErrorLevel,
}

func toZerologLevel(l slog.Level) zerolog.Level {
	if zl, ok := slogLevels[l]; ok {
		return zl
	}
	if l < slog.LevelDebug {
		return zerolog.TraceLevel
	}
	return zerolog.ErrorLevel
}

// Enabled implements slog.Handler against the zerolog logger's own
// level, so lowering LOG_LEVEL silences supervisor chatter too.
func (h *supervisorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return toZerologLevel(level) >= h.logger.GetLevel()
}

// Handle implements slog.Handler: one slog record becomes one zerolog
// event carrying the handler's accumulated attrs plus the record's own.
func (h *supervisorHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(toZerologLevel(record.Level))
	for _, attr := range h.attrs {
		event = h.appendAttr(event, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = h.appendAttr(event, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *supervisorHandler) appendAttr(event *zerolog.Event, attr slog.Attr) *zerolog.Event {
	key := h.prefix + attr.Key
	value := attr.Value.Resolve()

	switch value.Kind() {
	case slog.KindString:
		return event.Str(key, value.String())
	case slog.KindInt64:
		return event.Int64(key, value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, value.Float64())
	case slog.KindBool:
		return event.Bool(key, value.Bool())
	case slog.KindDuration:
		return event.Dur(key, value.Duration())
	case slog.KindTime:
		return event.Time(key, value.Time())
	case slog.KindGroup:
		for _, member := range value.Group() {
			member.Key = attr.Key + "." + member.Key
			event = h.appendAttr(event, member)
		}
		return event
	default:
		return event.Interface(key, value.Any())
	}
}

// WithAttrs implements slog.Handler.
func (h *supervisorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &supervisorHandler{logger: h.logger, prefix: h.prefix, attrs: merged}
}

// WithGroup implements slog.Handler via dotted key prefixes.
func (h *supervisorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &supervisorHandler{logger: h.logger, prefix: h.prefix + name + ".", attrs: h.attrs}
}
