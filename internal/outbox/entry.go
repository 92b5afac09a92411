// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tomtom215/tabline/internal/models"
)

// Status is the dispatch state of an entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSending    Status = "sending"
	StatusFailed     Status = "failed" // Waiting for NextAttemptAt
	StatusDeadLetter Status = "dead_letter"
)

// Entry is one queued mutation.
type Entry struct {
	ID              string          `json:"id"`
	TerminalID      string          `json:"terminal_id"`
	OrderID         string          `json:"order_id"`
	Sequence        uint64          `json:"sequence"`
	Mutation        models.Mutation `json:"mutation"`
	ExpectedVersion int64           `json:"expected_version"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Attempts        int             `json:"attempts"`
	Rebases         int             `json:"rebases,omitempty"`
	Status          Status          `json:"status"`
	LastError       string          `json:"last_error,omitempty"`
	ErrorClass      string          `json:"error_class,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	NextAttemptAt   time.Time       `json:"next_attempt_at"`
	DeadLetteredAt  *time.Time      `json:"dead_lettered_at,omitempty"`
}

// Due reports whether the entry may be dispatched at now.
func (e *Entry) Due(now time.Time) bool {
	switch e.Status {
	case StatusPending, StatusFailed:
		return !now.Before(e.NextAttemptAt)
	default:
		return false
	}
}

// Submission converts the entry into its wire form.
func (e *Entry) Submission() models.OutboxSubmission {
	return models.OutboxSubmission{
		EntryID:         e.ID,
		OrderID:         e.OrderID,
		Sequence:        e.Sequence,
		ExpectedVersion: e.ExpectedVersion,
		IdempotencyKey:  e.IdempotencyKey,
		Mutation:        e.Mutation,
	}
}

func (e *Entry) key() string { return entryKey(e.OrderID, e.Sequence) }

// Order ids are free-form, so the key segment is hex encoded. Hex has no
// ':' and no id's segment is a prefix of another's.
func entryKey(orderID string, seq uint64) string {
	return fmt.Sprintf("%s%020d", entryPrefix(orderID), seq)
}

func entryPrefix(orderID string) string {
	return prefixEntry + hex.EncodeToString([]byte(orderID)) + ":"
}

// Submission is what a caller enqueues.
type Submission struct {
	OrderID         string          `validate:"required,max=64"`
	ExpectedVersion int64           `validate:"min=0"`
	IdempotencyKey  string          `validate:"required,idemkey,max=128"`
	Mutation        models.Mutation `validate:"required"`
}
