// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/tasks"
)

// inlineQueue runs tasks synchronously so tests need no sleeps.
type inlineQueue struct{}

func (inlineQueue) Submit(_ string, fn tasks.Func) bool {
	return fn(context.Background()) == nil
}

var server = models.Actor{VenueID: "v1", TerminalID: "t1", EmployeeID: "e1", Role: "server"}

func newTestLogger(cfg Config) (*Logger, *MemoryStore) {
	store := NewMemoryStore(100)
	return NewLogger(store, inlineQueue{}, cfg), store
}

func TestLogger_Log(t *testing.T) {
	logger, store := newTestLogger(DefaultConfig())
	ctx := logging.ContextWithRequestID(context.Background(), "req-1")

	logger.LogOrderMutation(ctx, server, "o1", 4, models.MutationAddItem, "k1")

	events, err := store.Query(ctx, QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("ID and Timestamp should be filled in")
	}
	if e.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", e.RequestID)
	}
	if e.Target == nil || e.Target.ID != "o1" || e.Target.Version != 4 {
		t.Errorf("Target = %+v", e.Target)
	}
}

func TestLogger_DisabledAndSeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	logger, store := newTestLogger(cfg)
	logger.LogAuthSuccess(context.Background(), server)
	if store.Len() != 0 {
		t.Errorf("disabled logger stored %d events", store.Len())
	}

	cfg = DefaultConfig()
	cfg.LogLevel = SeverityWarning
	logger, store = newTestLogger(cfg)
	logger.LogAuthSuccess(context.Background(), server)
	logger.LogAuthFailure(context.Background(), "v1", "t9", "bad secret")
	logger.Log(context.Background(), &Event{Type: EventTypeAdminAction, Severity: SeverityDebug})
	if store.Len() != 1 {
		t.Errorf("stored %d events, want only the warning", store.Len())
	}
}

func TestLogger_Irreconcilable(t *testing.T) {
	logger, store := newTestLogger(DefaultConfig())
	logger.LogIrreconcilable(context.Background(), server, "ref-9", "o1", 2000, errors.New("processor timeout"))

	events, _ := store.Query(context.Background(), QueryFilter{Severities: []Severity{SeverityCritical}})
	if len(events) != 1 {
		t.Fatalf("critical events = %d, want 1", len(events))
	}
	if !strings.Contains(string(events[0].Metadata), "processor timeout") {
		t.Errorf("metadata = %s, want the cause", events[0].Metadata)
	}
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	now := time.Now()

	_ = store.Save(ctx, &Event{ID: "1", Timestamp: now.Add(-2 * time.Hour), Type: EventTypeOrderMutation, Actor: Actor{VenueID: "v1", TerminalID: "t1"}, Target: &Target{ID: "o1", Type: "order"}})
	_ = store.Save(ctx, &Event{ID: "2", Timestamp: now.Add(-time.Hour), Type: EventTypePaymentCaptured, Actor: Actor{VenueID: "v1", TerminalID: "t2"}, Target: &Target{ID: "r1", Type: "payment"}})
	_ = store.Save(ctx, &Event{ID: "3", Timestamp: now, Type: EventTypeOrderMutation, Actor: Actor{VenueID: "v2"}, Description: "Order void"})

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{"all, newest first", QueryFilter{}, []string{"3", "2", "1"}},
		{"by type", QueryFilter{Types: []EventType{EventTypeOrderMutation}}, []string{"3", "1"}},
		{"by venue", QueryFilter{VenueID: "v1"}, []string{"2", "1"}},
		{"by terminal", QueryFilter{TerminalID: "t2"}, []string{"2"}},
		{"by target type", QueryFilter{TargetType: "order"}, []string{"1"}},
		{"text", QueryFilter{SearchText: "VOID"}, []string{"3"}},
		{"limit", QueryFilter{Limit: 1}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("event[%d] = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	start := now.Add(-90 * time.Minute)
	if n, _ := store.Count(ctx, QueryFilter{StartTime: &start}); n != 2 {
		t.Errorf("Count(since 90m) = %d, want 2", n)
	}
}

func TestMemoryStore_DeleteAndBound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	old := time.Now().Add(-100 * 24 * time.Hour)
	for i := 0; i < 12; i++ {
		ts := time.Now()
		if i < 5 {
			ts = old
		}
		_ = store.Save(ctx, &Event{Timestamp: ts})
	}
	if store.Len() > 10 {
		t.Errorf("Len() = %d, want bounded at 10", store.Len())
	}

	deleted, _ := store.Delete(ctx, time.Now().Add(-24*time.Hour))
	if deleted == 0 || store.Len() != 7 {
		t.Errorf("deleted=%d remaining=%d, want 7 recent events kept", deleted, store.Len())
	}
}

func TestCEFExporter(t *testing.T) {
	events := []Event{{
		Timestamp:   time.UnixMilli(1700000000000),
		Type:        EventTypePaymentIrreconcilable,
		Severity:    SeverityCritical,
		Outcome:     OutcomeFailure,
		Actor:       Actor{TerminalID: "t1", EmployeeID: "e1"},
		Target:      &Target{ID: "ref|9"},
		Action:      "compensate",
		Description: "a=b",
	}}
	out, err := NewCEFExporter().Export(events)
	if err != nil {
		t.Fatal(err)
	}
	line := string(out)
	for _, want := range []string{"CEF:0|Tabline|OrderSync|1.0|payment.irreconcilable|a\\=b|10|", "rt=1700000000000", "duid=ref\\|9", "suid=e1"} {
		if !strings.Contains(line, want) {
			t.Errorf("CEF line %q missing %q", line, want)
		}
	}
}
