// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// Metadata keys set on every published message.
const (
	MetaVenueID = "venue_id"
	MetaOrigin  = "origin"
)

// HandlerFunc processes one decoded message payload.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Bus publishes and subscribes JSON payloads over a Watermill transport.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool // publisher and subscriber are the same gochannel
	cfg        Config
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New creates a bus over the transport selected by cfg. When cfg.Embedded
// is set the caller must pass the running server's client URL in cfg.URL.
func New(cfg Config) (*Bus, error) {
	logger := NewLogger()

	if !cfg.NATS {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputBuffer,
		}, logger)
		return &Bus{publisher: ch, subscriber: ch, shared: true, cfg: cfg, logger: logger}, nil
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("tabline"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	// Core NATS: every subscriber sees every message, no queue group, no
	// JetStream persistence.
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   cfg.HandlerTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, cfg: cfg, logger: logger}, nil
}

// Publish marshals payload as JSON and publishes it to topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}, meta map[string]string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.SetContext(ctx)
	for k, v := range meta {
		msg.Metadata.Set(k, v)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	if err := b.publisher.Publish(topic, msg); err != nil {
		metrics.RecordEventBus(topic, "failed")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RecordEventBus(topic, "published")
	return nil
}

// Subscribe returns the raw message channel for topic. The channel closes
// when ctx is canceled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

// Handle subscribes to topic and runs fn for every message until ctx is
// canceled. Messages are acked whether or not fn succeeds; failures are
// logged and counted.
func (b *Bus) Handle(ctx context.Context, topic string, fn HandlerFunc) error {
	messages, err := b.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.process(ctx, topic, msg, fn)
		}
	}
}

func (b *Bus) process(ctx context.Context, topic string, msg *message.Message, fn HandlerFunc) {
	defer msg.Ack()

	hctx := ctx
	if id := msg.Metadata.Get("request_id"); id != "" {
		hctx = logging.ContextWithRequestID(hctx, id)
	}
	if b.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, b.cfg.HandlerTimeout)
		defer cancel()
	}

	if err := fn(hctx, msg); err != nil {
		metrics.RecordEventBus(topic, "failed")
		b.logger.Error("Event handler failed", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"topic":        topic,
		})
		return
	}
	metrics.RecordEventBus(topic, "consumed")
}

// Close shuts down the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Decode unmarshals a message payload into v.
func Decode(msg *message.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return nil
}
