// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// stubService is a controllable suture.Service for tree tests: it can
// fail a set number of times before settling into a run-until-cancelled
// loop, and counts how often the supervisor started it.
type stubService struct {
	name      string
	starts    atomic.Int32
	stops     atomic.Int32
	failsLeft atomic.Int32
}

func newStubService(name string) *stubService {
	return &stubService{name: name}
}

// failTimes arms n simulated failures; the n+1th start runs normally.
func (s *stubService) failTimes(n int32) {
	s.failsLeft.Store(n)
}

// Serve implements suture.Service.
func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	defer s.stops.Add(1)

	if s.failsLeft.Load() > 0 {
		s.failsLeft.Add(-1)
		return errors.New("simulated failure")
	}

	<-ctx.Done()
	return ctx.Err()
}

// String identifies the service in suture's event log.
func (s *stubService) String() string { return s.name }
