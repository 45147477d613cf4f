// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to manage Docker containers for integration tests,
// providing realistic testing environments that closely match production.
//
// # NATS Container
//
// NewNATSContainer provides a real broker for exercising the bus
// transport end to end:
//
//	func TestBusRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nats.Container)
//
//	    bus, err := transport.NewNATSTransport(transport.DefaultNATSConfig(nats.URL))
//	    // drive register/acquire/release against the real broker
//	}
//
// # Benefits Over Mocks
//
// Using real containers provides several advantages:
//   - Tests validate actual broker semantics (JetStream acks, reconnects)
//   - No mock drift (mocks getting out of sync with the real protocol)
//   - Tests run against production-equivalent services
//
// # CI Considerations
//
// These tests require Docker and network access, and build only under
// the integration tag. In CI:
//   - Self-hosted runners have Docker pre-installed
//   - Container images are cached between runs
//   - Tests are skipped gracefully if Docker is unavailable
//
// # Network Requirements
//
// First run may need to download container images. Subsequent runs use cached images.
package testinfra
