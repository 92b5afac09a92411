// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
)

// Relay forwards every committed local ledger mutation to the upstream
// through an Engine. The edge server runs one so the cloud store follows
// the venue's authoritative ledger.
type Relay struct {
	source  Source
	engine  *Engine
	venueID string
	logger  zerolog.Logger
}

// NewRelay creates a relay for one venue.
func NewRelay(source Source, engine *Engine, venueID string) *Relay {
	return &Relay{
		source:  source,
		engine:  engine,
		venueID: venueID,
		logger:  logging.WithComponent("relay"),
	}
}

// Serve implements suture.Service.
func (r *Relay) Serve(ctx context.Context) error {
	return r.source.Handle(ctx, models.TopicOrderChanged, func(ctx context.Context, msg *message.Message) error {
		var evt models.OrderChanged
		if err := eventbus.Decode(msg, &evt); err != nil {
			return err
		}
		_, err := r.Forward(ctx, &evt)
		return err
	})
}

// String implements fmt.Stringer for supervisor logging.
func (r *Relay) String() string {
	return "outbox-relay"
}

// Forward queues evt's mutation upstream. It reports whether the event was
// relayed; changes from other venues are skipped. Settlements, payment
// voids and reopens are relayed too and the cloud accepts them only from
// an edge.
func (r *Relay) Forward(ctx context.Context, evt *models.OrderChanged) (bool, error) {
	if evt.VenueID != r.venueID || evt.Mutation == nil {
		return false, nil
	}
	if !evt.Mutation.Relayable() {
		r.logger.Warn().Str("order_id", evt.OrderID).Str("kind", string(evt.Mutation.Kind)).Msg("Change is incomplete, not relayed")
		return false, nil
	}
	if evt.IdempotencyKey == "" {
		r.logger.Warn().Str("order_id", evt.OrderID).Int64("version", evt.Version).Msg("Change has no idempotency key, not relayed")
		return false, nil
	}

	_, err := r.engine.Enqueue(ctx, Submission{
		OrderID:         evt.OrderID,
		ExpectedVersion: evt.ExpectedVersion,
		IdempotencyKey:  evt.IdempotencyKey,
		Mutation:        *evt.Mutation,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
