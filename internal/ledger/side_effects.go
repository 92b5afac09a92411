// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"time"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
)

// KitchenTicket is what a prep station prints when items are fired.
type KitchenTicket struct {
	OrderID    string       `json:"order_id"`
	VenueID    string       `json:"venue_id"`
	Station    string       `json:"station"`
	TableLabel string       `json:"table_label,omitempty"`
	Lines      []TicketLine `json:"lines"`
	FiredAt    time.Time    `json:"fired_at"`
}

// TicketLine is one item on a kitchen ticket.
type TicketLine struct {
	ItemID    string   `json:"item_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Note      string   `json:"note,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// TicketSink renders or routes kitchen tickets.
type TicketSink interface {
	Print(ctx context.Context, t KitchenTicket) error
}

// LogTicketSink writes tickets to the log. It stands in for a printer
// bridge on development and test deployments.
type LogTicketSink struct{}

// Print implements TicketSink.
func (LogTicketSink) Print(_ context.Context, t KitchenTicket) error {
	logging.Info().
		Str("order_id", t.OrderID).
		Str("station", t.Station).
		Int("lines", len(t.Lines)).
		Msg("Kitchen ticket")
	return nil
}

// SideEffects turns committed writes into audit records and kitchen
// tickets, both run on the side-effect queue.
type SideEffects struct {
	audit   *audit.Logger
	queue   audit.Submitter
	tickets TicketSink
}

// NewSideEffects creates the side-effect notifier. Any argument may be nil
// to disable that effect.
func NewSideEffects(auditLog *audit.Logger, queue audit.Submitter, tickets TicketSink) *SideEffects {
	return &SideEffects{audit: auditLog, queue: queue, tickets: tickets}
}

// OrderCommitted implements Notifier.
func (s *SideEffects) OrderCommitted(ctx context.Context, c Change) {
	if s.audit != nil {
		if c.Kind == models.MutationReopen && c.Mutation != nil {
			s.audit.LogOrderReopened(ctx, c.Actor, c.After.ID, c.After.Version, c.Mutation.Reason)
		} else {
			s.audit.LogOrderMutation(ctx, c.Actor, c.After.ID, c.After.Version, c.Kind, c.IdempotencyKey)
		}
	}

	if c.Kind != models.MutationSend || s.queue == nil || s.tickets == nil {
		return
	}
	for _, t := range KitchenTickets(c.Before, c.After) {
		ticket := t
		s.queue.Submit("kitchen_ticket", func(ctx context.Context) error {
			return s.tickets.Print(ctx, ticket)
		})
	}
}

// KitchenTickets returns one ticket per station for items fired by the
// write from before to after.
func KitchenTickets(before, after *models.Order) []KitchenTicket {
	byStation := make(map[string]*KitchenTicket)
	var order []string

	for i := range after.Items {
		it := &after.Items[i]
		if !it.Live() || it.SentAt == nil || it.StationTag == "" {
			continue
		}
		if before != nil {
			if prev := before.FindItem(it.ID); prev != nil && prev.SentAt != nil {
				continue
			}
		}

		t, ok := byStation[it.StationTag]
		if !ok {
			t = &KitchenTicket{
				OrderID:    after.ID,
				VenueID:    after.VenueID,
				Station:    it.StationTag,
				TableLabel: after.TableLabel,
				FiredAt:    *it.SentAt,
			}
			byStation[it.StationTag] = t
			order = append(order, it.StationTag)
		}
		line := TicketLine{ItemID: it.ID, Name: it.Name, Quantity: it.Quantity, Note: it.Note}
		for _, m := range it.Modifiers {
			if m.DeletedAt == nil {
				line.Modifiers = append(line.Modifiers, m.Name)
			}
		}
		t.Lines = append(t.Lines, line)
	}

	tickets := make([]KitchenTicket, 0, len(order))
	for _, station := range order {
		tickets = append(tickets, *byStation[station])
	}
	return tickets
}
