// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/tasks"
)

// Config holds configuration for the audit logger.
type Config struct {
	Enabled       bool     `koanf:"enabled"`
	LogLevel      Severity `koanf:"log_level"`
	RetentionDays int      `koanf:"retention_days" validate:"min=1"`
	MaxEvents     int      `koanf:"max_events"`
	LogToStdout   bool     `koanf:"log_to_stdout"`
	IncludeDebug  bool     `koanf:"include_debug"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LogLevel:      SeverityInfo,
		RetentionDays: 90,
		MaxEvents:     50000,
	}
}

// Submitter runs a side effect asynchronously. *tasks.Queue satisfies it.
type Submitter interface {
	Submit(kind string, fn tasks.Func) bool
}

// Logger records audit events through the side-effect queue.
type Logger struct {
	mu     sync.RWMutex
	config Config
	store  Store
	queue  Submitter
}

// NewLogger creates an audit logger that saves to store via queue.
func NewLogger(store Store, queue Submitter, config Config) *Logger {
	return &Logger{config: config, store: store, queue: queue}
}

// Log records an audit event. It never blocks on the store; if the queue
// is full the event is dropped and the queue logs it.
func (l *Logger) Log(ctx context.Context, event *Event) {
	l.mu.RLock()
	config := l.config
	l.mu.RUnlock()

	if !config.Enabled || !shouldLog(event.Severity, &config) {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestIDFromContext(ctx)
	}
	if config.LogToStdout {
		logToStdout(event)
	}

	ev := *event
	l.queue.Submit("audit", func(ctx context.Context) error {
		return l.store.Save(ctx, &ev)
	})
}

func logToStdout(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}
	logging.Info().RawJSON("event", data).Msg("Audit event")
}

func shouldLog(severity Severity, config *Config) bool {
	if severity == SeverityDebug && !config.IncludeDebug {
		return false
	}
	return severityOrder[severity] >= severityOrder[config.LogLevel]
}

// Cleanup deletes events older than the retention period. The scheduler
// runs it daily.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	l.mu.RLock()
	retention := l.config.RetentionDays
	l.mu.RUnlock()

	count, err := l.store.Delete(ctx, time.Now().AddDate(0, 0, -retention))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
	return count, nil
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

// ActorFrom converts an authenticated actor.
func ActorFrom(a models.Actor) Actor {
	return Actor{
		VenueID:    a.VenueID,
		TerminalID: a.TerminalID,
		EmployeeID: a.EmployeeID,
		Role:       a.Role,
		Type:       "terminal",
	}
}

// SystemActor is the actor for events raised by background components.
func SystemActor(venueID, component string) Actor {
	return Actor{VenueID: venueID, TerminalID: component, Type: "system"}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// LogOrderMutation records a committed order write.
func (l *Logger) LogOrderMutation(ctx context.Context, actor models.Actor, orderID string, version int64, kind models.MutationKind, key string) {
	l.Log(ctx, &Event{
		Type:        EventTypeOrderMutation,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: orderID, Type: "order", Version: version},
		Action:      string(kind),
		Description: "Order " + string(kind),
		Metadata:    mustJSON(map[string]string{"idempotency_key": key}),
	})
}

// LogOrderReopened records a manager reopening a settled order.
func (l *Logger) LogOrderReopened(ctx context.Context, actor models.Actor, orderID string, version int64, reason string) {
	l.Log(ctx, &Event{
		Type:        EventTypeOrderReopened,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: orderID, Type: "order", Version: version},
		Action:      "reopen",
		Description: "Order reopened: " + reason,
	})
}

// LogPayment records a payment state change.
func (l *Logger) LogPayment(ctx context.Context, typ EventType, actor models.Actor, reference, orderID string, amount models.Money, outcome Outcome) {
	severity := SeverityInfo
	if outcome == OutcomeFailure {
		severity = SeverityWarning
	}
	l.Log(ctx, &Event{
		Type:        typ,
		Severity:    severity,
		Outcome:     outcome,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: reference, Type: "payment"},
		Action:      string(typ),
		Description: "Payment " + reference + " on order " + orderID,
		Metadata:    mustJSON(map[string]any{"order_id": orderID, "amount": amount}),
	})
}

// LogIrreconcilable records a capture that could be neither committed nor
// reversed. An operator must resolve it with the processor.
func (l *Logger) LogIrreconcilable(ctx context.Context, actor models.Actor, reference, orderID string, amount models.Money, cause error) {
	l.Log(ctx, &Event{
		Type:        EventTypePaymentIrreconcilable,
		Severity:    SeverityCritical,
		Outcome:     OutcomeFailure,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: reference, Type: "payment"},
		Action:      "compensate",
		Description: "Captured payment could not be recorded or voided; manual reconciliation required",
		Metadata: mustJSON(map[string]any{
			"order_id": orderID,
			"amount":   amount,
			"error":    cause.Error(),
		}),
	})
}

// LogDeadLetter records an outbox entry that needs an operator.
func (l *Logger) LogDeadLetter(ctx context.Context, venueID, terminalID, entryID, orderID, reason string) {
	l.Log(ctx, &Event{
		Type:        EventTypeOutboxDeadLetter,
		Severity:    SeverityError,
		Outcome:     OutcomeFailure,
		Actor:       Actor{VenueID: venueID, TerminalID: terminalID, Type: "system"},
		Target:      &Target{ID: entryID, Type: "outbox_entry"},
		Action:      "dead_letter",
		Description: "Outbox entry for order " + orderID + " dead-lettered: " + reason,
	})
}

// LogRequeued records an operator moving a dead letter back to pending.
func (l *Logger) LogRequeued(ctx context.Context, venueID, terminalID, entryID string) {
	l.Log(ctx, &Event{
		Type:        EventTypeOutboxRequeued,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{VenueID: venueID, TerminalID: terminalID, Type: "system"},
		Target:      &Target{ID: entryID, Type: "outbox_entry"},
		Action:      "requeue",
		Description: "Dead-lettered entry requeued",
	})
}

// LogFleetCommand records an operator command sent to terminals.
func (l *Logger) LogFleetCommand(ctx context.Context, actor models.Actor, cmd *models.FleetCommand) {
	target := cmd.TerminalID
	if target == "" {
		target = "venue:" + cmd.VenueID
	}
	l.Log(ctx, &Event{
		Type:        EventTypeFleetCommand,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: target, Type: "terminal"},
		Action:      string(cmd.Type),
		Description: "Fleet command " + string(cmd.Type),
		Metadata:    mustJSON(map[string]string{"command_id": cmd.ID}),
	})
}

// LogAuthSuccess records a terminal enrolment.
func (l *Logger) LogAuthSuccess(ctx context.Context, actor models.Actor) {
	l.Log(ctx, &Event{
		Type:        EventTypeAuthSuccess,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFrom(actor),
		Action:      "authenticate",
		Description: "Terminal authenticated",
	})
}

// LogAuthFailure records a rejected terminal enrolment.
func (l *Logger) LogAuthFailure(ctx context.Context, venueID, terminalID, reason string) {
	l.Log(ctx, &Event{
		Type:        EventTypeAuthFailure,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{VenueID: venueID, TerminalID: terminalID, Type: "terminal"},
		Action:      "authenticate",
		Description: "Authentication failed: " + reason,
	})
}

// LogAuthzDenied records a refused privileged action.
func (l *Logger) LogAuthzDenied(ctx context.Context, actor models.Actor, resource, action string) {
	l.Log(ctx, &Event{
		Type:        EventTypeAuthzDenied,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       ActorFrom(actor),
		Target:      &Target{ID: resource, Type: "resource"},
		Action:      action,
		Description: "Access denied to " + action,
	})
}

// LogAdminAction records an operator action not covered above.
func (l *Logger) LogAdminAction(ctx context.Context, actor models.Actor, action, description string, metadata map[string]any) {
	l.Log(ctx, &Event{
		Type:        EventTypeAdminAction,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFrom(actor),
		Action:      action,
		Description: description,
		Metadata:    mustJSON(metadata),
	})
}
