// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

//go:build integration

package testinfra

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// dockerProbe caches the Docker-availability check: every integration
// test calls SkipIfNoDocker, and one `docker info` per binary is enough.
var dockerProbe struct {
	once      sync.Once
	available bool
}

// SkipIfNoDocker skips the calling test when no Docker daemon is
// reachable, so the integration suite degrades to a skip instead of an
// error cascade on broker-less machines.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if !IsDockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}
}

// IsDockerAvailable reports whether a Docker daemon answers. The result
// is probed once per process.
func IsDockerAvailable() bool {
	dockerProbe.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dockerProbe.available = exec.CommandContext(ctx, "docker", "info").Run() == nil
	})
	return dockerProbe.available
}

// CleanupContainer terminates a container from a deferred call, logging
// rather than failing the test when teardown itself has trouble.
func CleanupContainer(t *testing.T, ctx context.Context, container testcontainers.Container) {
	t.Helper()
	if container == nil {
		return
	}
	if err := container.Terminate(ctx); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}

// WaitUntil polls check with exponential backoff until it reports true,
// ctx ends, or timeout elapses. For broker-readiness conditions the
// container's own wait strategy cannot express (e.g. a JetStream stream
// becoming visible to a freshly-connected client).
func WaitUntil(ctx context.Context, timeout time.Duration, check func() bool) error {
	deadline := time.Now().Add(timeout)
	backoff := 50 * time.Millisecond

	for time.Now().Before(deadline) {
		if check() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
	return context.DeadlineExceeded
}
