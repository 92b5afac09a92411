// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"

	"github.com/tomtom215/tabline/internal/models"
)

// Outcome is the processor's answer to an authorization.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomePartial  Outcome = "partial"
	OutcomeDeclined Outcome = "declined"
)

// AuthorizeRequest asks the processor to hold funds.
type AuthorizeRequest struct {
	IdempotencyKey string       `json:"idempotency_key"`
	OrderID        string       `json:"order_id"`
	VenueID        string       `json:"venue_id"`
	TerminalID     string       `json:"terminal_id"`
	Amount         models.Money `json:"amount"`
	ForceOffline   bool         `json:"force_offline,omitempty"` // Set when forwarding a stored-offline transaction
}

// AuthorizeResponse is the processor's decision.
type AuthorizeResponse struct {
	Reference string       `json:"reference"`
	Outcome   Outcome      `json:"outcome"`
	Approved  models.Money `json:"approved"`
}

// ProcessorState is a transaction's state at the processor.
type ProcessorState string

const (
	ProcessorAuthorized ProcessorState = "authorized"
	ProcessorCaptured   ProcessorState = "captured"
	ProcessorVoided     ProcessorState = "voided"
	ProcessorDeclined   ProcessorState = "declined"
)

// ProcessorStatus is the processor's record of a transaction.
type ProcessorStatus struct {
	Reference string         `json:"reference"`
	State     ProcessorState `json:"state"`
	Approved  models.Money   `json:"approved"`
	Captured  models.Money   `json:"captured"`
}

// Processor is the external payment processor. Implementations return
// *apperr.TransientError (or wrap apperr.ErrUnavailable) when the processor
// cannot be reached, and *apperr.ValidationError when it refuses a request.
// Capture and Void must be idempotent per reference.
type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	Capture(ctx context.Context, reference string, amount models.Money) error
	Void(ctx context.Context, reference string) error
	Query(ctx context.Context, reference string) (ProcessorStatus, error)
}
