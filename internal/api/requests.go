// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import "github.com/tomtom215/tabline/internal/models"

// Request bodies. Field validation happens in the ledger and payment
// service, which validate every command they accept.

// CreateOrderRequest creates a draft order. OrderID is optional; offline
// terminals choose one so they can queue further mutations against it.
type CreateOrderRequest struct {
	OrderID        string `json:"order_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	TableLabel     string `json:"table_label,omitempty"`
}

// MutationRequest applies one mutation at an expected version.
type MutationRequest struct {
	ExpectedVersion int64           `json:"expected_version"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Mutation        models.Mutation `json:"mutation"`
}

// ReopenOrderRequest reopens a closed, voided or cancelled order.
type ReopenOrderRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	IdempotencyKey  string `json:"idempotency_key"`
	Reason          string `json:"reason"`
}

// AuthorizePaymentRequest asks the processor to hold an amount.
type AuthorizePaymentRequest struct {
	OrderID        string       `json:"order_id"`
	Amount         models.Money `json:"amount"`
	IdempotencyKey string       `json:"idempotency_key"`
	AllowOffline   bool         `json:"allow_offline"`
}

// CapturePaymentRequest captures against an authorization.
type CapturePaymentRequest struct {
	Amount          models.Money `json:"amount"`
	ExpectedVersion int64        `json:"expected_version"`
	IdempotencyKey  string       `json:"idempotency_key"`
}

// VoidPaymentRequest voids an authorization or capture.
type VoidPaymentRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// FleetCommandRequest addresses a terminal, or every terminal of the
// caller's venue when TerminalID is empty.
type FleetCommandRequest struct {
	Type       models.FleetCommandType `json:"type" validate:"required,oneof=force_resync repair_outbox kick"`
	TerminalID string                  `json:"terminal_id,omitempty" validate:"omitempty,max=64"`
}
