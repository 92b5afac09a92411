// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/payment"
)

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, models.Actor{}, http.MethodGet, "/api/v1/health/live", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = f.do(t, models.Actor{}, http.MethodGet, "/api/v1/health/ready", nil)
	expectStatus(t, rec, http.StatusOK)

	f.handler.AddReadinessCheck("postgres", func(context.Context) error {
		return errors.New("connection refused")
	})

	rec = f.do(t, models.Actor{}, http.MethodGet, "/api/v1/health/ready", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)

	rec = f.do(t, models.Actor{}, http.MethodGet, "/api/v1/health", nil)
	expectStatus(t, rec, http.StatusOK)
	var health HealthStatus
	decode(t, rec, &health)
	if health.Status != "degraded" {
		t.Errorf("health status = %q, want degraded", health.Status)
	}
	if health.Components["postgres"] != "connection refused" {
		t.Errorf("components = %v", health.Components)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, models.Actor{}, http.MethodGet, "/api/v1/orders", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestTerminalLogin(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		req    models.TerminalLoginRequest
		status int
	}{
		{"valid", models.TerminalLoginRequest{VenueID: venue, TerminalID: "term-1", EmployeeID: "e7", Secret: terminalPass}, http.StatusOK},
		{"wrong secret", models.TerminalLoginRequest{VenueID: venue, TerminalID: "term-1", Secret: "not-the-secret"}, http.StatusUnauthorized},
		{"unknown terminal", models.TerminalLoginRequest{VenueID: venue, TerminalID: "term-404", Secret: terminalPass}, http.StatusUnauthorized},
		{"missing secret", models.TerminalLoginRequest{VenueID: venue, TerminalID: "term-1"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, models.Actor{}, http.MethodPost, "/api/v1/auth/terminal", tt.req)
			expectStatus(t, rec, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var resp models.TerminalLoginResponse
			decode(t, rec, &resp)
			if resp.Token == "" || resp.Role != models.RoleServer {
				t.Fatalf("login response = %+v", resp)
			}
			claims, err := f.jwt.ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("issued token does not validate: %v", err)
			}
			if claims.Actor().EmployeeID != "e7" {
				t.Errorf("employee = %q, want e7", claims.Actor().EmployeeID)
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders", CreateOrderRequest{OrderID: "o1", IdempotencyKey: "create-o1", TableLabel: "T4"})
	expectStatus(t, rec, http.StatusCreated)

	// Same key replays the first result.
	rec = f.do(t, serverActor, http.MethodPost, "/api/v1/orders", CreateOrderRequest{OrderID: "o1", IdempotencyKey: "create-o1", TableLabel: "T4"})
	expectStatus(t, rec, http.StatusOK)
	var res ledger.Result
	decode(t, rec, &res)
	if !res.Replayed || res.Version != 1 {
		t.Fatalf("replay = %+v", res)
	}

	add := MutationRequest{
		ExpectedVersion: 1,
		IdempotencyKey:  "add-1",
		Mutation:        models.Mutation{Kind: models.MutationAddItem, SKU: "burger", ItemID: "i1", Quantity: 1},
	}
	rec = f.do(t, serverActor, http.MethodPost, "/api/v1/orders/o1/mutations", add)
	expectStatus(t, rec, http.StatusOK)

	t.Run("stale version", func(t *testing.T) {
		stale := add
		stale.IdempotencyKey = "add-2"
		stale.Mutation.ItemID = "i2"
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders/o1/mutations", stale)
		expectStatus(t, rec, http.StatusConflict)
		env := decode(t, rec, nil)
		if env.Error == nil || env.Error.Code != models.CodeConflict {
			t.Fatalf("error = %+v", env.Error)
		}
		if got := env.Error.Details["current_version"]; got != float64(2) {
			t.Errorf("current_version = %v, want 2", got)
		}
	})

	t.Run("unavailable item", func(t *testing.T) {
		soup := MutationRequest{
			ExpectedVersion: 2,
			IdempotencyKey:  "add-soup",
			Mutation:        models.Mutation{Kind: models.MutationAddItem, SKU: "soup", ItemID: "i3", Quantity: 1},
		}
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders/o1/mutations", soup)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders/o1/mutations", map[string]interface{}{"expected_version": 2, "bogus": true})
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("read back", func(t *testing.T) {
		rec := f.do(t, kitchenActor, http.MethodGet, "/api/v1/orders/o1", nil)
		expectStatus(t, rec, http.StatusOK)
		var order models.Order
		decode(t, rec, &order)
		if order.Version != 2 || len(order.Items) != 1 || order.TableLabel != "T4" {
			t.Errorf("order = version %d items %d table %q", order.Version, len(order.Items), order.TableLabel)
		}
	})

	t.Run("other venue", func(t *testing.T) {
		rec := f.do(t, otherVenue, http.MethodGet, "/api/v1/orders/o1", nil)
		expectStatus(t, rec, http.StatusNotFound)
	})

	t.Run("kitchen cannot write", func(t *testing.T) {
		rec := f.do(t, kitchenActor, http.MethodPost, "/api/v1/orders", CreateOrderRequest{OrderID: "o9", IdempotencyKey: "create-o9"})
		expectStatus(t, rec, http.StatusForbidden)
	})

	t.Run("server cannot reopen", func(t *testing.T) {
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders/o1/reopen", ReopenOrderRequest{ExpectedVersion: 2, IdempotencyKey: "reopen-1", Reason: "wrong table"})
		expectStatus(t, rec, http.StatusForbidden)
	})
}

func TestBootstrapAndDelta(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, "o1")

	rec := f.do(t, kitchenActor, http.MethodGet, "/api/v1/bootstrap", nil)
	expectStatus(t, rec, http.StatusOK)
	var snap models.Snapshot
	decode(t, rec, &snap)
	if len(snap.Orders) != 1 || snap.Cursor == 0 {
		t.Fatalf("snapshot = %d orders cursor %d", len(snap.Orders), snap.Cursor)
	}

	rec = f.do(t, kitchenActor, http.MethodGet, "/api/v1/delta?since=-1", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	f.createOrder(t, "o2")
	rec = f.do(t, kitchenActor, http.MethodGet, "/api/v1/delta?since="+itoa(snap.Cursor), nil)
	expectStatus(t, rec, http.StatusOK)
	var delta models.Delta
	decode(t, rec, &delta)
	if len(delta.Orders) != 1 || delta.Orders[0].ID != "o2" {
		t.Errorf("delta orders = %+v", delta.Orders)
	}
	if delta.Cursor <= snap.Cursor {
		t.Errorf("delta cursor %d did not advance past %d", delta.Cursor, snap.Cursor)
	}
}

func TestSubmitOutbox(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, "o1")

	batch := func(terminal string) models.OutboxBatch {
		return models.OutboxBatch{
			TerminalID: terminal,
			Entries: []models.OutboxSubmission{{
				EntryID:         "e1",
				OrderID:         "o1",
				Sequence:        1,
				ExpectedVersion: 3,
				IdempotencyKey:  terminal + "-send-1",
				Mutation:        models.Mutation{Kind: models.MutationSend},
			}},
		}
	}

	t.Run("terminal mismatch", func(t *testing.T) {
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/outbox", batch("term-2"))
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	})

	t.Run("own terminal", func(t *testing.T) {
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/outbox", batch("term-1"))
		expectStatus(t, rec, http.StatusOK)
		var resp models.OutboxResponse
		decode(t, rec, &resp)
		if len(resp.Results) != 1 || resp.Results[0].Status != models.SubmissionConfirmed {
			t.Fatalf("results = %+v", resp.Results)
		}
	})

	t.Run("edge relays for another terminal", func(t *testing.T) {
		b := batch("term-2")
		b.Entries[0].ExpectedVersion = 4
		b.Entries[0].Mutation = models.Mutation{Kind: models.MutationAddItem, SKU: "fries", ItemID: "i9", Quantity: 1}
		rec := f.do(t, edgeActor, http.MethodPost, "/api/v1/outbox", b)
		expectStatus(t, rec, http.StatusOK)
		var resp models.OutboxResponse
		decode(t, rec, &resp)
		if len(resp.Results) != 1 || resp.Results[0].Status != models.SubmissionConfirmed {
			t.Fatalf("results = %+v", resp.Results)
		}
		if resp.Results[0].CurrentVersion != 5 {
			t.Errorf("current version = %d, want 5", resp.Results[0].CurrentVersion)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		rec := f.do(t, serverActor, http.MethodPost, "/api/v1/outbox", models.OutboxBatch{TerminalID: "term-1"})
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	})

	t.Run("kitchen cannot submit", func(t *testing.T) {
		rec := f.do(t, kitchenActor, http.MethodPost, "/api/v1/outbox", batch("kds-1"))
		expectStatus(t, rec, http.StatusForbidden)
	})
}

func TestPaymentCapture(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, "o1")

	rec := f.do(t, serverActor, http.MethodPost, "/api/v1/payments/authorize", AuthorizePaymentRequest{OrderID: "o1", Amount: 2000, IdempotencyKey: "auth-1"})
	expectStatus(t, rec, http.StatusOK)
	var auth payment.Record
	decode(t, rec, &auth)
	if auth.State != payment.StateAuthorized || auth.Approved != 2000 {
		t.Fatalf("authorization = %s approved %d", auth.State, auth.Approved)
	}

	rec = f.do(t, otherVenue, http.MethodGet, "/api/v1/payments/"+auth.Reference, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = f.do(t, serverActor, http.MethodPost, "/api/v1/payments/"+auth.Reference+"/capture", CapturePaymentRequest{Amount: 2000, ExpectedVersion: order.Version, IdempotencyKey: "cap-1"})
	expectStatus(t, rec, http.StatusOK)
	var captured payment.Record
	decode(t, rec, &captured)
	if captured.State != payment.StateCaptured || captured.Captured != 2000 {
		t.Fatalf("capture = %s captured %d", captured.State, captured.Captured)
	}

	rec = f.do(t, serverActor, http.MethodGet, "/api/v1/orders/o1", nil)
	var paid models.Order
	decode(t, rec, &paid)
	if paid.Totals.BalanceDue != 0 || paid.Totals.Paid != 2000 {
		t.Errorf("totals = %+v", paid.Totals)
	}

	rec = f.do(t, serverActor, http.MethodGet, "/api/v1/orders/o1/payments", nil)
	expectStatus(t, rec, http.StatusOK)
	var records []payment.Record
	decode(t, rec, &records)
	if len(records) != 1 {
		t.Errorf("order payments = %d, want 1", len(records))
	}

	// Voids need a manager.
	rec = f.do(t, serverActor, http.MethodPost, "/api/v1/payments/"+auth.Reference+"/void", VoidPaymentRequest{IdempotencyKey: "void-1"})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestOfflinePaymentsBlockBatchClose(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, "o1")
	f.proc.SetOnline(false)

	rec := f.do(t, serverActor, http.MethodPost, "/api/v1/payments/authorize", AuthorizePaymentRequest{OrderID: "o1", Amount: 2000, IdempotencyKey: "auth-1"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After on busy response")
	}

	rec = f.do(t, serverActor, http.MethodPost, "/api/v1/payments/authorize", AuthorizePaymentRequest{OrderID: "o1", Amount: 2000, IdempotencyKey: "auth-2", AllowOffline: true})
	expectStatus(t, rec, http.StatusOK)
	var stored payment.Record
	decode(t, rec, &stored)
	if stored.State != payment.StateStoredOffline {
		t.Fatalf("state = %s, want stored_offline", stored.State)
	}

	rec = f.do(t, managerActor, http.MethodGet, "/api/v1/saf", nil)
	expectStatus(t, rec, http.StatusOK)
	var status payment.SAFStatus
	decode(t, rec, &status)
	if status.Depth != 1 {
		t.Errorf("saf depth = %d, want 1", status.Depth)
	}

	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/saf/close", nil)
	expectStatus(t, rec, http.StatusConflict)
	env := decode(t, rec, nil)
	if env.Error == nil || env.Error.Code != models.CodeOfflinePending {
		t.Fatalf("error = %+v", env.Error)
	}
	if env.Error.Details["offline_pending"] != float64(1) {
		t.Errorf("details = %v", env.Error.Details)
	}

	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/saf/close?force=maybe", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/saf/close?force=true", nil)
	expectStatus(t, rec, http.StatusOK)
	var summary payment.BatchSummary
	decode(t, rec, &summary)
	if !summary.Forced || summary.OfflinePending != 1 {
		t.Errorf("summary = %+v", summary)
	}

	f.proc.SetOnline(true)
	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/saf/forward", nil)
	expectStatus(t, rec, http.StatusOK)
	var forwarded payment.ForwardResult
	decode(t, rec, &forwarded)
	if forwarded.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", forwarded.Remaining)
	}

	rec = f.do(t, serverActor, http.MethodGet, "/api/v1/saf", nil)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestOutboxAdminOnCloud(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, managerActor, http.MethodGet, "/api/v1/outbox/status", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = f.do(t, serverActor, http.MethodGet, "/api/v1/outbox/status", nil)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestFleetCommand(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, managerActor, http.MethodPost, "/api/v1/admin/fleet/commands", FleetCommandRequest{Type: models.CommandForceResync})
	expectStatus(t, rec, http.StatusForbidden)

	rec = f.do(t, adminActor, http.MethodPost, "/api/v1/admin/fleet/commands", FleetCommandRequest{Type: "reboot"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = f.do(t, adminActor, http.MethodPost, "/api/v1/admin/fleet/commands", FleetCommandRequest{Type: models.CommandForceResync, TerminalID: "term-1"})
	expectStatus(t, rec, http.StatusAccepted)

	if len(f.publisher.commands) != 1 {
		t.Fatalf("published %d commands, want 1", len(f.publisher.commands))
	}
	cmd := f.publisher.commands[0]
	if cmd.VenueID != venue || cmd.TerminalID != "term-1" || cmd.IssuedBy != "console" || cmd.ID == "" {
		t.Errorf("command = %+v", cmd)
	}
}

func TestAuditEvents(t *testing.T) {
	f := newFixture(t)

	// A refused request is audited.
	rec := f.do(t, kitchenActor, http.MethodPost, "/api/v1/orders", CreateOrderRequest{OrderID: "o1", IdempotencyKey: "create-o1"})
	expectStatus(t, rec, http.StatusForbidden)
	f.audit.LogAuthzDenied(context.Background(), otherVenue, "order", "write")

	var body struct {
		Events []audit.Event `json:"events"`
		Total  int64         `json:"total"`
	}
	rec = f.do(t, managerActor, http.MethodGet, "/api/v1/audit?type=authz.denied", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &body)
	if body.Total != 1 || len(body.Events) != 1 {
		t.Fatalf("manager sees %d events (total %d), want 1", len(body.Events), body.Total)
	}
	if body.Events[0].Actor.TerminalID != "kds-1" {
		t.Errorf("event actor = %+v", body.Events[0].Actor)
	}

	// A manager's venue_id is ignored; an admin's is honoured.
	rec = f.do(t, managerActor, http.MethodGet, "/api/v1/audit?type=authz.denied&venue_id=v2", nil)
	decode(t, rec, &body)
	if body.Total != 1 || body.Events[0].Actor.VenueID != venue {
		t.Errorf("manager venue override leaked: %+v", body.Events)
	}
	rec = f.do(t, adminActor, http.MethodGet, "/api/v1/audit?type=authz.denied&venue_id=v2", nil)
	decode(t, rec, &body)
	if body.Total != 1 || body.Events[0].Actor.VenueID != "v2" {
		t.Errorf("admin venue query = %+v", body.Events)
	}

	for _, query := range []string{"limit=0", "limit=5000", "start=yesterday"} {
		rec = f.do(t, managerActor, http.MethodGet, "/api/v1/audit?"+query, nil)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
