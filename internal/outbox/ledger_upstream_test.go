// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
)

var edgeActor = models.Actor{VenueID: "v1", TerminalID: "edge-1", Role: models.RoleEdge}

func testMenu() *catalog.StaticCatalog {
	return catalog.NewStatic(map[string][]catalog.Product{
		"v1": {
			{SKU: "burger", Name: "Burger", Price: 1200, Available: true, StationTag: "grill"},
			{SKU: "fries", Name: "Fries", Price: 400, Available: true, StationTag: "fryer"},
		},
	})
}

type roleAuthorizer map[string]bool

func (a roleAuthorizer) Authorize(_ context.Context, actor models.Actor, action string) error {
	if a[actor.Role] {
		return nil
	}
	return fmt.Errorf("%s may not %s: %w", actor.Role, action, apperr.ErrForbidden)
}

func newTestLedger(t *testing.T, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	idem := ledger.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(idem.Close)
	opts = append([]ledger.Option{withTestAuthorizer()}, opts...)
	l := ledger.New(ledger.NewMemoryStore(), idem, testMenu(), ledger.DefaultConfig(), opts...)
	t.Cleanup(l.Close)
	return l
}

// withTestAuthorizer lets managers and edges reopen orders.
func withTestAuthorizer() ledger.Option {
	return ledger.WithAuthorizer(roleAuthorizer{models.RoleManager: true, models.RoleEdge: true})
}

// ledgerUpstream submits batches to a real cloud ledger as an edge. Keys in
// lostAcks are applied but the response is dropped, as if the connection
// failed after the server committed.
type ledgerUpstream struct {
	ledger *ledger.Ledger
	actor  models.Actor

	mu       sync.Mutex
	lostAcks map[string]int
	submits  map[string]int
}

func newLedgerUpstream(l *ledger.Ledger) *ledgerUpstream {
	return &ledgerUpstream{
		ledger:   l,
		actor:    edgeActor,
		lostAcks: make(map[string]int),
		submits:  make(map[string]int),
	}
}

func (u *ledgerUpstream) loseAck(key string, times int) {
	u.mu.Lock()
	u.lostAcks[key] = times
	u.mu.Unlock()
}

func (u *ledgerUpstream) submitted(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.submits[key]
}

func (u *ledgerUpstream) Submit(ctx context.Context, batch models.OutboxBatch) (*models.OutboxResponse, error) {
	resp := u.ledger.ApplyBatch(ctx, u.actor, batch)

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, sub := range batch.Entries {
		u.submits[sub.IdempotencyKey]++
		if n := u.lostAcks[sub.IdempotencyKey]; n > 0 {
			u.lostAcks[sub.IdempotencyKey] = n - 1
			return nil, apperr.Transient("submit", errors.New("connection reset by peer"))
		}
	}
	return resp, nil
}

func (u *ledgerUpstream) FetchOrder(ctx context.Context, id string) (*models.Order, error) {
	return u.ledger.Get(ctx, u.actor.VenueID, id)
}

func (u *ledgerUpstream) Bootstrap(ctx context.Context) (*models.Snapshot, error) {
	return u.ledger.Snapshot(ctx, u.actor.VenueID)
}

func (u *ledgerUpstream) Delta(ctx context.Context, since int64) (*models.Delta, error) {
	return u.ledger.ChangesSince(ctx, u.actor.VenueID, since)
}
