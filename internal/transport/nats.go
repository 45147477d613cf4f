// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

//go:build nats

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/resource"
)

// NATSConfig configures the bus-backed transport, mirroring the fields a
// single-node arbitration daemon actually needs out of Watermill's
// broader PublisherConfig/SubscriberConfig pair.
type NATSConfig struct {
	URL             string
	RequestSubject  string
	DurableName     string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultNATSConfig returns production defaults for the arbitration bus.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:             url,
		RequestSubject:  "resourced.requests",
		DurableName:     "resourced-arbiter",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
	}
}

// NATSTransport publishes notifications to per-client reply subjects and
// consumes client requests from a shared subject, using a resilient
// Watermill/NATS JetStream pair. A circuit breaker guards publish calls so a
// degraded broker cannot stall the single-threaded arbitration loop.
type NATSTransport struct {
	cfg NATSConfig

	pub    message.Publisher
	sub    message.Subscriber
	codec  *Codec
	breaker *gobreaker.CircuitBreaker[interface{}]

	mu       sync.Mutex
	closed   bool
	embedded *EmbeddedServer
}

// NewNATSTransport dials NATS and wires up a JetStream publisher/subscriber
// pair for the arbitration request/notification bus.
func NewNATSTransport(cfg NATSConfig) (*NATSTransport, error) {
	logger := logging.NewWatermillAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Error().Err(err).Msg("transport: nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("transport: nats reconnected")
		}),
	}

	pubConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}
	pub, err := wmNats.NewPublisher(pubConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("transport: create nats publisher: %w", err)
	}

	subConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: "resourced",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
		},
	}
	sub, err := wmNats.NewSubscriber(subConfig, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("transport: create nats subscriber: %w", err)
	}

	breakerSettings := gobreaker.Settings{
		Name:    "transport-nats-publish",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("transport: circuit breaker state change")
		},
	}

	return &NATSTransport{
		cfg:     cfg,
		pub:     pub,
		sub:     sub,
		codec:   NewCodec(),
		breaker: gobreaker.NewCircuitBreaker[interface{}](breakerSettings),
	}, nil
}

// Run implements Dispatcher: it subscribes to the shared request subject
// and decodes each message into a Request for h.
func (t *NATSTransport) Run(ctx context.Context, h Handler) error {
	messages, err := t.sub.Subscribe(ctx, t.cfg.RequestSubject)
	if err != nil {
		return fmt.Errorf("transport: subscribe to %s: %w", t.cfg.RequestSubject, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			req, err := t.codec.UnmarshalRequest(msg.Payload)
			if err != nil {
				logging.Error().Err(err).Msg("transport: discarding malformed request")
				msg.Nack()
				continue
			}
			if err := h.HandleRequest(ctx, req); err != nil {
				logging.Error().Err(err).Str("kind", string(req.Kind)).Msg("transport: request handling failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// Close shuts down both the publisher and subscriber.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	subErr := t.sub.Close()
	pubErr := t.pub.Close()
	if t.embedded != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.embedded.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("transport: embedded broker shutdown")
		}
	}
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

func (t *NATSTransport) publish(subject string, n Notification) error {
	data, err := t.codec.MarshalNotification(n)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)

	_, err = t.breaker.Execute(func() (interface{}, error) {
		return nil, t.pub.Publish(subject, msg)
	})
	return err
}

func clientSubject(clientAddr string) string {
	return "resourced.notify." + clientAddr
}

// SendGrant implements resourceset.Transport.
func (t *NATSTransport) SendGrant(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyGrant, ManagerID: managerID, ReqNo: reqno, Value: value})
}

// SendAdvice implements resourceset.Transport.
func (t *NATSTransport) SendAdvice(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyAdvice, ManagerID: managerID, ReqNo: reqno, Value: value})
}

// SendReleaseRequest implements resourceset.Transport.
func (t *NATSTransport) SendReleaseRequest(clientAddr string, managerID uint32) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyReleaseRequest, ManagerID: managerID})
}

// SendRegistered implements resourceset.Transport.
func (t *NATSTransport) SendRegistered(clientAddr string, managerID uint32, reqno uint64) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyRegistered, ManagerID: managerID, ReqNo: reqno})
}

// SendProxyStatus implements notifyproxy.ClientPusher.
func (t *NATSTransport) SendProxyStatus(clientAddr string, proxyID uint64, status string) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyProxyStatus, ProxyID: proxyID, Status: status})
}

// SendProxyFailed implements notifyproxy.ClientPusher.
func (t *NATSTransport) SendProxyFailed(clientAddr string, proxyID uint64, reason string) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyProxyFailed, ProxyID: proxyID, Reason: reason})
}

// SendProxyCompleted implements notifyproxy.ClientPusher.
func (t *NATSTransport) SendProxyCompleted(clientAddr string, proxyID uint64) error {
	return t.publish(clientSubject(clientAddr), Notification{Kind: NotifyProxyCompleted, ProxyID: proxyID})
}
