// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package eventbus

import (
	"context"
	"time"

	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
)

// Publisher is the subset of Bus used by producers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}, meta map[string]string) error
}

// OrderPublisher publishes models.OrderChanged for every committed ledger
// write. It is registered on the ledger as a Notifier.
type OrderPublisher struct {
	pub Publisher
	now func() time.Time
}

// NewOrderPublisher creates a ledger notifier that publishes to pub.
func NewOrderPublisher(pub Publisher) *OrderPublisher {
	return &OrderPublisher{pub: pub, now: time.Now}
}

// OrderCommitted implements ledger.Notifier.
func (p *OrderPublisher) OrderCommitted(ctx context.Context, c ledger.Change) {
	evt := OrderChangedFrom(c, p.now())
	meta := map[string]string{MetaVenueID: evt.VenueID, MetaOrigin: evt.OriginTerminal}

	if err := p.pub.Publish(ctx, models.TopicOrderChanged, evt, meta); err != nil {
		// Terminals recover through their delta poll; the write is committed.
		logging.Ctx(ctx).Warn().Err(err).
			Str("order_id", evt.OrderID).
			Int64("version", evt.Version).
			Msg("Failed to publish order change")
	}
}

// OrderChangedFrom builds the change signal for a committed write. Station
// tags cover both the before and after states so a station whose last item
// was removed still hears about it.
func OrderChangedFrom(c ledger.Change, at time.Time) *models.OrderChanged {
	after := c.After
	tags := after.StationTags()
	if c.Before != nil {
		seen := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			seen[t] = struct{}{}
		}
		for _, t := range c.Before.StationTags() {
			if _, ok := seen[t]; !ok {
				tags = append(tags, t)
			}
		}
	}

	return &models.OrderChanged{
		OrderID:         after.ID,
		VenueID:         after.VenueID,
		Version:         after.Version,
		Status:          after.Status,
		Kind:            c.Kind,
		StationTags:     tags,
		OwnerTerminalID: after.OwnerTerminalID,
		OriginTerminal:  c.Actor.TerminalID,
		IdempotencyKey:  c.IdempotencyKey,
		Mutation:        c.Mutation,
		ExpectedVersion: c.ExpectedVersion,
		At:              at,
	}
}
