// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/tasks"
)

type inlineQueue struct{}

func (inlineQueue) Submit(_ string, fn tasks.Func) bool {
	return fn(context.Background()) == nil
}

type printedTickets struct {
	mu      sync.Mutex
	tickets []KitchenTicket
}

func (p *printedTickets) Print(_ context.Context, t KitchenTicket) error {
	p.mu.Lock()
	p.tickets = append(p.tickets, t)
	p.mu.Unlock()
	return nil
}

func TestSideEffectsKitchenTicketsOncePerSend(t *testing.T) {
	t.Parallel()

	auditStore := audit.NewMemoryStore(100)
	printer := &printedTickets{}
	effects := NewSideEffects(audit.NewLogger(auditStore, inlineQueue{}, audit.DefaultConfig()), inlineQueue{}, printer)
	f := newFixture(t, WithNotifier(effects))

	f.create(t, "o1")
	f.apply(t, terminalX, "o1", 1, "k1", addItem("burger", "b1", 1))
	f.apply(t, terminalX, "o1", 2, "k2", addItem("fries", "f1", 2))
	f.apply(t, terminalX, "o1", 3, "fire-1", models.Mutation{Kind: models.MutationSend})

	// A retried send is replayed and prints nothing.
	f.apply(t, terminalX, "o1", 3, "fire-1", models.Mutation{Kind: models.MutationSend})

	if len(printer.tickets) != 2 {
		t.Fatalf("tickets = %d, want one each for grill and fryer", len(printer.tickets))
	}
	if printer.tickets[0].Station != "grill" || printer.tickets[1].Station != "fryer" {
		t.Errorf("stations = %s, %s", printer.tickets[0].Station, printer.tickets[1].Station)
	}

	// Firing a later item prints only that item.
	f.apply(t, terminalX, "o1", 4, "k3", addItem("burger", "b2", 1))
	f.apply(t, terminalX, "o1", 5, "fire-2", models.Mutation{Kind: models.MutationSend})
	last := printer.tickets[len(printer.tickets)-1]
	if len(printer.tickets) != 3 || len(last.Lines) != 1 || last.Lines[0].ItemID != "b2" {
		t.Errorf("second fire tickets = %+v", printer.tickets[2:])
	}

	if n, _ := auditStore.Count(context.Background(), audit.QueryFilter{Types: []audit.EventType{audit.EventTypeOrderMutation}}); n != 6 {
		t.Errorf("audit mutations = %d, want 6 (no record for the replay)", n)
	}
}
