// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

// State is the lifecycle state of an authorization record.
type State string

const (
	StateNone              State = "none"
	StateAuthorized        State = "authorized"
	StatePartialAuthorized State = "partial_authorized"
	StateCaptured          State = "captured"
	StateSettled           State = "settled"
	StateVoided            State = "voided"
	StateStoredOffline     State = "stored_offline"
	StateFailed            State = "failed"
)

var transitions = map[State][]State{
	StateNone:              {StateAuthorized, StatePartialAuthorized, StateStoredOffline, StateFailed},
	StateStoredOffline:     {StateAuthorized, StatePartialAuthorized, StateFailed, StateVoided},
	StateAuthorized:        {StateCaptured, StateVoided},
	StatePartialAuthorized: {StateCaptured, StateVoided},
	StateCaptured:          {StateSettled, StateVoided},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Capturable reports whether a capture may be taken against the record.
func (s State) Capturable() bool {
	return s == StateAuthorized || s == StatePartialAuthorized
}

// Transition is one append-only history line.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Record mirrors one processor authorization.
type Record struct {
	Reference          string       `json:"reference"`
	ProcessorReference string       `json:"processor_reference,omitempty"` // Set when a stored-offline record is forwarded
	OrderID            string       `json:"order_id"`
	VenueID            string       `json:"venue_id"`
	TerminalID         string       `json:"terminal_id"`
	Requested          models.Money `json:"requested"`
	Approved           models.Money `json:"approved"`
	Captured           models.Money `json:"captured"`
	State              State        `json:"state"`
	Offline            bool         `json:"offline,omitempty"`
	IdempotencyKey     string       `json:"idempotency_key"`
	CaptureKey         string       `json:"capture_key,omitempty"`
	PendingLedgerVoid  bool         `json:"pending_ledger_void,omitempty"`
	Irreconcilable     bool         `json:"irreconcilable,omitempty"`
	History            []Transition `json:"history"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Remaining returns the approved amount not yet captured.
func (r *Record) Remaining() models.Money {
	return r.Approved - r.Captured
}

// processorRef is the reference the processor knows this record by.
func (r *Record) processorRef() string {
	if r.ProcessorReference != "" {
		return r.ProcessorReference
	}
	return r.Reference
}

// transition moves the record to state, appending to History.
func (r *Record) transition(to State, at time.Time, note string) error {
	if !CanTransition(r.State, to) {
		return apperr.Validationf("state", "payment %s is %s and cannot become %s", r.Reference, r.State, to)
	}
	r.force(to, at, note)
	return nil
}

// force records a transition without consulting the table. Reconciliation
// uses it because the processor's view always wins.
func (r *Record) force(to State, at time.Time, note string) {
	r.History = append(r.History, Transition{From: r.State, To: to, At: at, Note: note})
	metrics.RecordPaymentTransition(string(r.State), string(to))
	r.State = to
	r.UpdatedAt = at
}

// clone returns a deep copy.
func (r *Record) clone() *Record {
	c := *r
	c.History = append([]Transition(nil), r.History...)
	return &c
}
