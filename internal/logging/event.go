// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

//go:build nats

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter routes the bus library's internal logging through the
// daemon's zerolog root, so broker reconnects, subscriber restarts, and
// ack failures land in the same stream as the arbitration events they
// interleave with.
type WatermillAdapter struct {
	logger zerolog.Logger
}

// NewWatermillAdapter builds an adapter tagged as the transport
// component.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{logger: Component("transport")}
}

func (a *WatermillAdapter) withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Error implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.withFields(a.logger.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter. The bus library is chatty at
// info; it logs at debug here so steady-state traffic stays quiet.
func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.withFields(a.logger.Debug(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.withFields(a.logger.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.withFields(a.logger.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter: the returned adapter stamps
// fields on every subsequent event.
func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	lc := a.logger.With()
	for k, v := range fields {
		lc = lc.Interface(k, v)
	}
	return &WatermillAdapter{logger: lc.Logger()}
}
