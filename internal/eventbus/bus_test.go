// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestBusPublishHandle(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan models.OrderChanged, 1)
	ready := make(chan struct{})
	go func() {
		msgs, err := bus.Subscribe(ctx, models.TopicOrderChanged)
		if err != nil {
			t.Errorf("Subscribe() error = %v", err)
			close(ready)
			return
		}
		close(ready)
		for msg := range msgs {
			var evt models.OrderChanged
			if err := Decode(msg, &evt); err != nil {
				t.Errorf("Decode() error = %v", err)
			}
			msg.Ack()
			got <- evt
			return
		}
	}()
	<-ready

	want := models.OrderChanged{OrderID: "o1", VenueID: "v1", Version: 3}
	if err := bus.Publish(ctx, models.TopicOrderChanged, want, map[string]string{MetaVenueID: "v1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case evt := <-got:
		if evt.OrderID != "o1" || evt.Version != 3 {
			t.Errorf("received %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestBusHandlerErrorDoesNotRedeliver(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	msgs, err := bus.Subscribe(ctx, "test.topic")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				bus.process(ctx, "test.topic", msg, func(context.Context, *message.Message) error {
					calls <- struct{}{}
					return errors.New("boom")
				})
			}
		}
	}()

	if err := bus.Publish(ctx, "test.topic", map[string]string{"a": "b"}, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	<-calls
	select {
	case <-calls:
		t.Fatal("failed message was redelivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Publish(context.Background(), "x", 1, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() error = %v, want ErrClosed", err)
	}
}

func TestOrderChangedFromIncludesRemovedStations(t *testing.T) {
	now := time.Now()
	before := &models.Order{ID: "o1", VenueID: "v1", Version: 4, Items: []models.OrderItem{
		{ID: "a", StationTag: "grill"},
		{ID: "b", StationTag: "bar"},
	}}
	after := before.Clone()
	after.Version = 5
	after.Items[1].DeletedAt = &now

	evt := OrderChangedFrom(ledger.Change{
		Before:          before,
		After:           after,
		Kind:            models.MutationRemoveItem,
		Actor:           models.Actor{VenueID: "v1", TerminalID: "t2"},
		ExpectedVersion: 4,
	}, now)

	if len(evt.StationTags) != 2 || evt.StationTags[0] != "grill" || evt.StationTags[1] != "bar" {
		t.Errorf("StationTags = %v, want [grill bar]", evt.StationTags)
	}
	if evt.OriginTerminal != "t2" || evt.Version != 5 {
		t.Errorf("event = %+v", evt)
	}
}

type capturePublisher struct {
	topic string
	evt   *models.OrderChanged
	meta  map[string]string
}

func (c *capturePublisher) Publish(_ context.Context, topic string, payload interface{}, meta map[string]string) error {
	c.topic = topic
	c.evt = payload.(*models.OrderChanged)
	c.meta = meta
	return nil
}

func TestOrderPublisherNotifies(t *testing.T) {
	pub := &capturePublisher{}
	p := NewOrderPublisher(pub)
	p.OrderCommitted(context.Background(), ledger.Change{
		After: &models.Order{ID: "o9", VenueID: "v1", Version: 1, OwnerTerminalID: "t1"},
		Kind:  models.MutationCreate,
		Actor: models.Actor{VenueID: "v1", TerminalID: "t1"},
	})

	if pub.topic != models.TopicOrderChanged {
		t.Errorf("topic = %q", pub.topic)
	}
	if pub.evt == nil || pub.evt.OrderID != "o9" || pub.meta[MetaVenueID] != "v1" {
		t.Errorf("published %+v meta %v", pub.evt, pub.meta)
	}
}
