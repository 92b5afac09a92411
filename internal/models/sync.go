// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

import "time"

// Snapshot is the full authoritative set of open orders for a venue.
type Snapshot struct {
	VenueID string    `json:"venue_id"`
	Orders  []Order   `json:"orders"`
	Cursor  int64     `json:"cursor"` // Pass as ?since= to the delta endpoint
	TakenAt time.Time `json:"taken_at"`
}

// Delta lists orders changed since a cursor. Removed holds IDs of orders
// that left the open set (closed, voided, cancelled) and should be pruned
// from terminal caches.
type Delta struct {
	VenueID string   `json:"venue_id"`
	Orders  []Order  `json:"orders"`
	Removed []string `json:"removed,omitempty"`
	Cursor  int64    `json:"cursor"`
}

// OutboxSubmission is one queued mutation posted by a terminal or edge relay.
type OutboxSubmission struct {
	EntryID         string   `json:"entry_id" validate:"required,max=64"`
	OrderID         string   `json:"order_id" validate:"required,max=64"`
	Sequence        uint64   `json:"sequence" validate:"min=1"`
	ExpectedVersion int64    `json:"expected_version" validate:"min=0"`
	IdempotencyKey  string   `json:"idempotency_key" validate:"required,max=128"`
	Mutation        Mutation `json:"mutation" validate:"required"`
}

// OutboxBatch is the body of POST /api/v1/outbox.
type OutboxBatch struct {
	TerminalID string             `json:"terminal_id" validate:"required,max=64"`
	Entries    []OutboxSubmission `json:"entries" validate:"required,min=1,max=200,dive"`
}

// SubmissionStatus is the server's verdict on one submission.
type SubmissionStatus string

const (
	SubmissionConfirmed SubmissionStatus = "confirmed"
	SubmissionConflict  SubmissionStatus = "conflict"
	SubmissionRejected  SubmissionStatus = "rejected"  // Validation: do not retry
	SubmissionRetry     SubmissionStatus = "retry"     // Transient: retry with backoff
	SubmissionFatal     SubmissionStatus = "fatal"     // Needs an operator
	SubmissionSkipped   SubmissionStatus = "skipped"   // An earlier entry for the same order did not confirm
)

// SubmissionResult is returned per entry, in request order.
type SubmissionResult struct {
	EntryID        string           `json:"entry_id"`
	Status         SubmissionStatus `json:"status"`
	Replayed       bool             `json:"replayed,omitempty"`
	Order          *Order           `json:"order,omitempty"`
	CurrentVersion int64            `json:"current_version,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// OutboxResponse is the body returned from POST /api/v1/outbox.
type OutboxResponse struct {
	Results []SubmissionResult `json:"results"`
}
