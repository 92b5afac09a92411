// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/wal"
)

const venue = "v1"

var cashier = models.Actor{VenueID: venue, TerminalID: "term-1", EmployeeID: "e1", Role: "server"}

type fixture struct {
	ledger *ledger.Ledger
	orders *ledger.MemoryStore
	proc   *SimulatedProcessor
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := wal.Open(wal.TestConfig())
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.NewStatic(map[string][]catalog.Product{
		venue: {
			{SKU: "burger", Name: "Burger", Price: 1200, Available: true, StationTag: "grill"},
			{SKU: "fries", Name: "Fries", Price: 400, Available: true, StationTag: "fryer"},
		},
	})
	idem := ledger.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(idem.Close)

	cfg := ledger.DefaultConfig()
	cfg.LockTimeout = 200 * time.Millisecond
	f := &fixture{orders: ledger.NewMemoryStore(), proc: NewSimulatedProcessor()}
	f.ledger = ledger.New(f.orders, idem, cat, cfg)
	t.Cleanup(f.ledger.Close)

	f.svc = NewService(Config{LockTimeout: 200 * time.Millisecond}, f.ledger, f.proc, NewStore(db))
	return f
}

// order creates an order with a 2000 balance due: a burger and two fries.
func (f *fixture) order(t *testing.T, id string) *models.Order {
	t.Helper()
	ctx := context.Background()

	if _, err := f.ledger.Create(ctx, ledger.CreateRequest{OrderID: id, IdempotencyKey: "create-" + id, Actor: cashier}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var res *ledger.Result
	version := int64(1)
	for i, m := range []models.Mutation{
		{Kind: models.MutationAddItem, SKU: "burger", ItemID: id + "-1", Quantity: 1},
		{Kind: models.MutationAddItem, SKU: "fries", ItemID: id + "-2", Quantity: 2},
	} {
		var err error
		res, err = f.ledger.Apply(ctx, ledger.ApplyRequest{
			OrderID:         id,
			ExpectedVersion: version,
			IdempotencyKey:  id + "-add-" + string(rune('a'+i)),
			Mutation:        m,
			Actor:           cashier,
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		version = res.Version
	}
	if res.Order.Totals.BalanceDue != 2000 {
		t.Fatalf("balance due = %d, want 2000", res.Order.Totals.BalanceDue)
	}
	return res.Order
}

func (f *fixture) get(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := f.ledger.Get(context.Background(), venue, id)
	if err != nil {
		t.Fatal(err)
	}
	return o
}
