// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package audit records who did what to which order or payment. Events are
// written off the request path through the side-effect task queue, so a
// slow or failing audit store never blocks a ledger write.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Order events
	EventTypeOrderMutation EventType = "order.mutation"
	EventTypeOrderReopened EventType = "order.reopened"

	// Payment events
	EventTypePaymentAuthorized     EventType = "payment.authorized"
	EventTypePaymentCaptured       EventType = "payment.captured"
	EventTypePaymentVoided         EventType = "payment.voided"
	EventTypePaymentStoredOffline  EventType = "payment.stored_offline"
	EventTypePaymentForwarded      EventType = "payment.forwarded"
	EventTypePaymentReconciled     EventType = "payment.reconciled"
	EventTypePaymentIrreconcilable EventType = "payment.irreconcilable"
	EventTypeBatchClosed           EventType = "payment.batch_closed"

	// Sync events
	EventTypeOutboxDeadLetter EventType = "outbox.dead_letter"
	EventTypeOutboxRequeued   EventType = "outbox.requeued"
	EventTypeFleetCommand     EventType = "fleet.command"

	// Access events
	EventTypeAuthSuccess EventType = "auth.success"
	EventTypeAuthFailure EventType = "auth.failure"
	EventTypeAuthzDenied EventType = "authz.denied"
	EventTypeAdminAction EventType = "admin.action"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// Event is one audit record.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Target      *Target         `json:"target,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is the terminal, employee or system component behind an event.
type Actor struct {
	VenueID    string `json:"venue_id,omitempty"`
	TerminalID string `json:"terminal_id,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Type       string `json:"type"` // terminal, system
}

// Target is the object of an action.
type Target struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // order, payment, outbox_entry, terminal
	Version int64  `json:"version,omitempty"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the retention cutoff.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter selects audit events. Zero fields do not filter.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	VenueID    string      `json:"venue_id,omitempty"`
	TerminalID string      `json:"terminal_id,omitempty"`
	TargetID   string      `json:"target_id,omitempty"`
	TargetType string      `json:"target_type,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	SearchText string      `json:"search_text,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// DefaultQueryFilter returns the filter used when a caller gives none.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}
