// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
)

func TestRelayForward(t *testing.T) {
	te := newTestEngine(t, newFakeUpstream(), 5)
	relay := NewRelay(nil, te.Engine, "v1")
	ctx := context.Background()

	add := &models.Mutation{Kind: models.MutationAddItem, SKU: "fries", Quantity: 2}
	tests := []struct {
		name string
		evt  models.OrderChanged
		want bool
	}{
		{"local add", models.OrderChanged{OrderID: "A", VenueID: "v1", Version: 3, ExpectedVersion: 2, IdempotencyKey: "k1", Mutation: add}, true},
		{"other venue", models.OrderChanged{OrderID: "A", VenueID: "v2", IdempotencyKey: "k2", Mutation: add}, false},
		{"settle", models.OrderChanged{OrderID: "A", VenueID: "v1", IdempotencyKey: "k3", Mutation: &models.Mutation{
			Kind:    models.MutationSettle,
			Payment: &models.PaymentLine{Reference: "ref-1", Amount: 800, State: models.PaymentLineCaptured},
		}}, true},
		{"settle without payment line", models.OrderChanged{OrderID: "A", VenueID: "v1", IdempotencyKey: "k4", Mutation: &models.Mutation{Kind: models.MutationSettle}}, false},
		{"payment void", models.OrderChanged{OrderID: "A", VenueID: "v1", IdempotencyKey: "k5", Mutation: &models.Mutation{Kind: models.MutationPaymentVoid, Reference: "ref-1"}}, true},
		{"reopen", models.OrderChanged{OrderID: "A", VenueID: "v1", ExpectedVersion: 6, IdempotencyKey: "k6", Mutation: &models.Mutation{Kind: models.MutationReopen, Reason: "wrong card"}}, true},
		{"no mutation", models.OrderChanged{OrderID: "A", VenueID: "v1", IdempotencyKey: "k7"}, false},
		{"no key", models.OrderChanged{OrderID: "A", VenueID: "v1", Mutation: add}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := relay.Forward(ctx, &tt.evt)
			if err != nil {
				t.Fatalf("Forward() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Forward() = %v, want %v", got, tt.want)
			}
		})
	}

	pending, err := te.store.Pending(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	wantKeys := []string{"k1", "k3", "k5", "k6"}
	if len(pending) != len(wantKeys) {
		t.Fatalf("Pending() = %d entries, want %d", len(pending), len(wantKeys))
	}
	for i, key := range wantKeys {
		if pending[i].IdempotencyKey != key {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i].IdempotencyKey, key)
		}
	}
	if pending[0].ExpectedVersion != 2 {
		t.Errorf("pending[0] expected version = %d, want 2", pending[0].ExpectedVersion)
	}
	if p := pending[1].Mutation.Payment; p == nil || p.Reference != "ref-1" || p.Amount != 800 {
		t.Errorf("relayed settle payment = %+v", p)
	}
}

// An edge takes a payment, closes the order, then a manager reopens it and
// voids the payment. The cloud must end up in the same state.
func TestRelayKeepsCloudInStepWithEdge(t *testing.T) {
	ctx := context.Background()
	server := models.Actor{VenueID: "v1", TerminalID: "term-1", EmployeeID: "e1", Role: models.RoleServer}
	manager := models.Actor{VenueID: "v1", TerminalID: "term-1", EmployeeID: "e9", Role: models.RoleManager}

	cloud := newTestLedger(t)
	te := newTestEngine(t, newLedgerUpstream(cloud), 5)
	relay := NewRelay(nil, te.Engine, "v1")
	edge := newTestLedger(t, ledger.WithNotifier(ledger.NotifierFunc(func(ctx context.Context, c ledger.Change) {
		if _, err := relay.Forward(ctx, eventbus.OrderChangedFrom(c, time.Now())); err != nil {
			t.Errorf("Forward(%s) error = %v", c.Kind, err)
		}
	})))

	steps := []struct {
		name string
		run  func() error
	}{
		{"create", func() error {
			_, err := edge.Create(ctx, ledger.CreateRequest{OrderID: "o1", IdempotencyKey: "o1-create", TableLabel: "T4", Actor: server})
			return err
		}},
		{"add burger", func() error {
			_, err := edge.Apply(ctx, ledger.ApplyRequest{
				OrderID: "o1", ExpectedVersion: 1, IdempotencyKey: "o1-add",
				Mutation: models.Mutation{Kind: models.MutationAddItem, ItemID: "i1", SKU: "burger", Quantity: 1},
				Actor:    server,
			})
			return err
		}},
		{"settle", func() error {
			_, err := edge.Settle(ctx, ledger.SettleRequest{OrderID: "o1", IdempotencyKey: "pay-1", Reference: "ref-1", Amount: 1200, Actor: server},
				func(context.Context, *models.Order) (models.PaymentLine, error) {
					return models.PaymentLine{Reference: "ref-1", Amount: 1200}, nil
				})
			return err
		}},
		{"close", func() error {
			_, err := edge.Apply(ctx, ledger.ApplyRequest{
				OrderID: "o1", ExpectedVersion: 3, IdempotencyKey: "o1-close",
				Mutation: models.Mutation{Kind: models.MutationClose},
				Actor:    server,
			})
			return err
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("edge %s error = %v", s.name, err)
		}
	}
	te.drain(t, 10)
	assertInStep(t, edge, cloud, models.StatusClosed, 1200)

	if _, err := edge.Reopen(ctx, ledger.ReopenRequest{OrderID: "o1", ExpectedVersion: 4, IdempotencyKey: "o1-reopen", Reason: "charged the wrong card", Actor: manager}); err != nil {
		t.Fatalf("edge reopen error = %v", err)
	}
	if _, err := edge.RecordPaymentVoid(ctx, ledger.PaymentVoidRequest{OrderID: "o1", Reference: "ref-1", IdempotencyKey: "void-1", Actor: manager}); err != nil {
		t.Fatalf("edge payment void error = %v", err)
	}
	te.drain(t, 10)
	assertInStep(t, edge, cloud, models.StatusSent, 0)

	if queued, dead := te.store.Depth(); queued != 0 || dead != 0 {
		t.Errorf("Depth() = %d queued, %d dead; want 0, 0", queued, dead)
	}
}

func assertInStep(t *testing.T, edge, cloud *ledger.Ledger, status models.OrderStatus, paid models.Money) {
	t.Helper()
	ctx := context.Background()
	e, err := edge.Get(ctx, "v1", "o1")
	if err != nil {
		t.Fatal(err)
	}
	c, err := cloud.Get(ctx, "v1", "o1")
	if err != nil {
		t.Fatalf("cloud Get() error = %v", err)
	}
	if e.Status != status || e.Totals.Paid != paid {
		t.Fatalf("edge = %s paid %d, want %s paid %d", e.Status, e.Totals.Paid, status, paid)
	}
	if c.Status != e.Status || c.Totals.Paid != e.Totals.Paid || c.Version != e.Version || c.ReopenCount != e.ReopenCount {
		t.Errorf("cloud = v%d %s paid %d reopened %d; edge = v%d %s paid %d reopened %d",
			c.Version, c.Status, c.Totals.Paid, c.ReopenCount, e.Version, e.Status, e.Totals.Paid, e.ReopenCount)
	}
	if len(c.Payments) != len(e.Payments) {
		t.Fatalf("cloud has %d payment lines, edge has %d", len(c.Payments), len(e.Payments))
	}
	for i := range e.Payments {
		if c.Payments[i].Reference != e.Payments[i].Reference || c.Payments[i].State != e.Payments[i].State {
			t.Errorf("payment %d: cloud %+v, edge %+v", i, c.Payments[i], e.Payments[i])
		}
	}
}
