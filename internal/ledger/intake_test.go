// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

func submission(entryID, orderID string, expected int64, key string, m models.Mutation) models.OutboxSubmission {
	return models.OutboxSubmission{
		EntryID:         entryID,
		OrderID:         orderID,
		Sequence:        1,
		ExpectedVersion: expected,
		IdempotencyKey:  key,
		Mutation:        m,
	}
}

func TestApplyBatchOrdersPerOrder(t *testing.T) {
	f := newFixture(t)
	f.create(t, "o2")

	batch := models.OutboxBatch{
		TerminalID: "term-x",
		Entries: []models.OutboxSubmission{
			submission("e1", "o1", 0, "k1", models.Mutation{Kind: models.MutationCreate, TableLabel: "T4"}),
			submission("e2", "o1", 1, "k2", addItem("burger", "i1", 1)),
			// Stale: o2 is at version 1.
			submission("e3", "o2", 5, "k3", addItem("fries", "i2", 1)),
			submission("e4", "o2", 6, "k4", addItem("fries", "i3", 1)),
			submission("e5", "o1", 2, "k5", addItem("soup", "i4", 1)),
			submission("e6", "o1", 3, "k6", addItem("fries", "i5", 1)),
		},
	}
	resp := f.ledger.ApplyBatch(context.Background(), terminalX, batch)

	want := []models.SubmissionStatus{
		models.SubmissionConfirmed,
		models.SubmissionConfirmed,
		models.SubmissionConflict,
		models.SubmissionSkipped,
		models.SubmissionRejected, // soup is unavailable
		models.SubmissionSkipped,
	}
	if len(resp.Results) != len(want) {
		t.Fatalf("results = %d, want %d", len(resp.Results), len(want))
	}
	for i, r := range resp.Results {
		if r.EntryID != batch.Entries[i].EntryID {
			t.Errorf("result %d entry = %s, want %s", i, r.EntryID, batch.Entries[i].EntryID)
		}
		if r.Status != want[i] {
			t.Errorf("result %d (%s) status = %s, want %s (%s)", i, r.EntryID, r.Status, want[i], r.Error)
		}
	}
	if resp.Results[1].CurrentVersion != 2 || resp.Results[1].Order == nil {
		t.Errorf("confirmed result = %+v", resp.Results[1])
	}
	if resp.Results[2].CurrentVersion != 1 {
		t.Errorf("conflict current_version = %d, want 1", resp.Results[2].CurrentVersion)
	}

	o, err := f.ledger.Get(context.Background(), venue, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if o.Version != 2 || len(o.Items) != 1 {
		t.Errorf("o1 = v%d with %d items, want v2 with 1", o.Version, len(o.Items))
	}
}

func TestApplyBatchReplayAndCommitFailure(t *testing.T) {
	f := newFixture(t)
	f.create(t, "o1")
	ctx := context.Background()

	entry := submission("e1", "o1", 1, "add-1", addItem("burger", "i1", 1))
	first := f.ledger.ApplyBatch(ctx, terminalX, models.OutboxBatch{TerminalID: "term-x", Entries: []models.OutboxSubmission{entry}})
	again := f.ledger.ApplyBatch(ctx, terminalX, models.OutboxBatch{TerminalID: "term-x", Entries: []models.OutboxSubmission{entry}})
	if first.Results[0].Status != models.SubmissionConfirmed || !again.Results[0].Replayed {
		t.Fatalf("first = %+v, again = %+v", first.Results[0], again.Results[0])
	}
	if again.Results[0].CurrentVersion != 2 {
		t.Errorf("replayed version = %d, want 2", again.Results[0].CurrentVersion)
	}

	f.store.FailNextWrite(errors.New("disk full"))
	next := submission("e2", "o1", 2, "add-2", addItem("fries", "i2", 1))
	resp := f.ledger.ApplyBatch(ctx, terminalX, models.OutboxBatch{TerminalID: "term-x", Entries: []models.OutboxSubmission{next}})
	if resp.Results[0].Status != models.SubmissionRetry {
		t.Errorf("commit failure status = %s, want retry", resp.Results[0].Status)
	}
}

func TestApplyBatchServerOriginKinds(t *testing.T) {
	f := newFixture(t, WithAuthorizer(allowRoles{models.RoleEdge: true}))
	f.orderTotalling2000(t, "o1")
	ctx := context.Background()

	edge := models.Actor{VenueID: venue, TerminalID: "edge-1", Role: models.RoleEdge}
	line := &models.PaymentLine{Reference: "ref-1", Amount: 2000, State: models.PaymentLineCaptured}
	settle := models.Mutation{Kind: models.MutationSettle, Payment: line}

	tests := []struct {
		name       string
		actor      models.Actor
		sub        models.OutboxSubmission
		want       models.SubmissionStatus
		wantStatus models.OrderStatus
		wantPaid   models.Money
	}{
		{"terminal settle", terminalX, submission("e1", "o1", 0, "pay-x", settle), models.SubmissionRejected, models.StatusSent, 0},
		{"settle without payment line", edge, submission("e2", "o1", 0, "pay-y", models.Mutation{Kind: models.MutationSettle}), models.SubmissionRejected, models.StatusSent, 0},
		{"edge settle", edge, submission("e3", "o1", 0, "pay-1", settle), models.SubmissionConfirmed, models.StatusPaid, 2000},
		{"edge settle replay", edge, submission("e3", "o1", 0, "pay-1", settle), models.SubmissionConfirmed, models.StatusPaid, 2000},
		{"edge close", edge, submission("e4", "o1", 5, "close-1", models.Mutation{Kind: models.MutationClose}), models.SubmissionConfirmed, models.StatusClosed, 2000},
		{"terminal reopen", terminalX, submission("e5", "o1", 6, "reopen-x", models.Mutation{Kind: models.MutationReopen, Reason: "wrong card"}), models.SubmissionRejected, models.StatusClosed, 2000},
		{"edge reopen", edge, submission("e6", "o1", 6, "reopen-1", models.Mutation{Kind: models.MutationReopen, Reason: "wrong card"}), models.SubmissionConfirmed, models.StatusSent, 2000},
		{"edge payment void", edge, submission("e7", "o1", 0, "void-1", models.Mutation{Kind: models.MutationPaymentVoid, Reference: "ref-1"}), models.SubmissionConfirmed, models.StatusSent, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.ledger.ApplyBatch(ctx, tt.actor, models.OutboxBatch{TerminalID: tt.actor.TerminalID, Entries: []models.OutboxSubmission{tt.sub}})
			if got := resp.Results[0]; got.Status != tt.want {
				t.Fatalf("status = %s (%s), want %s", got.Status, got.Error, tt.want)
			}
			o, err := f.ledger.Get(ctx, venue, "o1")
			if err != nil {
				t.Fatal(err)
			}
			if o.Status != tt.wantStatus || o.Totals.Paid != tt.wantPaid {
				t.Errorf("order = %s paid %d, want %s paid %d", o.Status, o.Totals.Paid, tt.wantStatus, tt.wantPaid)
			}
		})
	}

	o, err := f.ledger.Get(ctx, venue, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if o.Version != 8 || o.ReopenCount != 1 {
		t.Errorf("order = v%d reopened %d times, want v8 reopened once", o.Version, o.ReopenCount)
	}
}

func TestApplyRejectsServerOriginKinds(t *testing.T) {
	f := newFixture(t)
	f.create(t, "o1")

	for _, kind := range []models.MutationKind{models.MutationSettle, models.MutationPaymentVoid, models.MutationReopen} {
		t.Run(string(kind), func(t *testing.T) {
			_, err := f.ledger.Apply(context.Background(), ApplyRequest{
				OrderID: "o1", ExpectedVersion: 1, IdempotencyKey: "k-" + string(kind),
				Mutation: models.Mutation{Kind: kind, Reason: "r", Reference: "ref-1"},
				Actor:    terminalX,
			})
			if apperr.Classify(err) != apperr.ClassValidation {
				t.Errorf("Apply(%s) error = %v, want validation", kind, err)
			}
		})
	}
}

func TestSettleChangeCarriesPaymentLine(t *testing.T) {
	f := newFixture(t)
	f.orderTotalling2000(t, "o1")

	if _, err := f.ledger.Settle(context.Background(), SettleRequest{OrderID: "o1", IdempotencyKey: "pay-1", Reference: "ref-1", Amount: 500, Actor: terminalX}, settleFn("ref-1", 500)); err != nil {
		t.Fatal(err)
	}
	f.events.mu.Lock()
	last := f.events.changes[len(f.events.changes)-1]
	f.events.mu.Unlock()
	if last.Kind != models.MutationSettle || last.Mutation == nil || last.Mutation.Payment == nil {
		t.Fatalf("settle change = %+v", last)
	}
	if p := last.Mutation.Payment; p.Reference != "ref-1" || p.Amount != 500 || p.State != models.PaymentLineCaptured {
		t.Errorf("payment line = %+v", p)
	}
}
