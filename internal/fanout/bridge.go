// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/models"
)

// Source delivers bus messages for a topic.
type Source interface {
	Handle(ctx context.Context, topic string, fn eventbus.HandlerFunc) error
}

// Bridge feeds order.changed events from the bus into the fan-out.
type Bridge struct {
	source Source
	fanout *Fanout
}

// NewBridge creates a bridge from source to f.
func NewBridge(source Source, f *Fanout) *Bridge {
	return &Bridge{source: source, fanout: f}
}

// Serve implements suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	return b.source.Handle(ctx, models.TopicOrderChanged, func(_ context.Context, msg *message.Message) error {
		var evt models.OrderChanged
		if err := eventbus.Decode(msg, &evt); err != nil {
			return err
		}
		b.Route(&evt)
		return nil
	})
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string {
	return "fanout-bridge"
}

// Route publishes evt to the venue scope, one scope per touched station,
// and the owning terminal's scope.
func (b *Bridge) Route(evt *models.OrderChanged) {
	e := Event{OrderID: evt.OrderID, Version: evt.Version, Kind: evt.Kind}
	for _, scope := range ScopesFor(evt) {
		b.fanout.Publish(scope, e)
	}
}

// ScopesFor lists the scopes an order change is routed to.
func ScopesFor(evt *models.OrderChanged) []string {
	scopes := make([]string, 0, 2+len(evt.StationTags))
	scopes = append(scopes, VenueScope(evt.VenueID))
	for _, tag := range evt.StationTags {
		scopes = append(scopes, StationScope(evt.VenueID, tag))
	}
	if evt.OwnerTerminalID != "" {
		scopes = append(scopes, TerminalScope(evt.VenueID, evt.OwnerTerminalID))
	}
	return scopes
}
