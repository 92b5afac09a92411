// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

// MutationKind names a ledger mutation.
type MutationKind string

const (
	MutationCreate         MutationKind = "create"
	MutationAddItem        MutationKind = "add_item"
	MutationRemoveItem     MutationKind = "remove_item"
	MutationSetQuantity    MutationKind = "set_quantity"
	MutationAddModifier    MutationKind = "add_modifier"
	MutationRemoveModifier MutationKind = "remove_modifier"
	MutationSend           MutationKind = "send"
	MutationSplit          MutationKind = "split"
	MutationVoid           MutationKind = "void"
	MutationCancel         MutationKind = "cancel"
	MutationClose          MutationKind = "close"

	// Server-origin kinds. Terminals cannot submit them; an edge relays
	// them to the cloud after applying them to its own ledger.
	MutationReopen      MutationKind = "reopen"
	MutationSettle      MutationKind = "settle"
	MutationPaymentVoid MutationKind = "payment_void"
)

// Mutation is a single change to an order as submitted by a terminal. It is
// the payload carried by outbox entries, so every reference to a
// not-yet-confirmed item uses a client-generated ID.
type Mutation struct {
	Kind       MutationKind `json:"kind" validate:"required,oneof=create add_item remove_item set_quantity add_modifier remove_modifier send split void cancel close reopen settle payment_void"`
	ItemID     string       `json:"item_id,omitempty" validate:"omitempty,max=64"`
	ModifierID string       `json:"modifier_id,omitempty" validate:"omitempty,max=64"`
	SKU        string       `json:"sku,omitempty" validate:"omitempty,max=64"`
	Quantity   int          `json:"quantity,omitempty" validate:"omitempty,min=1,max=999"`
	Note       string       `json:"note,omitempty" validate:"omitempty,max=200"`
	Checks     int          `json:"checks,omitempty" validate:"omitempty,min=2,max=20"`
	TableLabel string       `json:"table_label,omitempty" validate:"omitempty,max=32"`
	Reason     string       `json:"reason,omitempty" validate:"omitempty,max=200"`
	Reference  string       `json:"reference,omitempty" validate:"omitempty,max=128"` // payment_void
	Payment    *PaymentLine `json:"payment,omitempty"`                                 // settle
}

// ItemMutation reports whether the mutation changes items or prices. Item
// mutations are rejected once the order has any payment.
func (m *Mutation) ItemMutation() bool {
	switch m.Kind {
	case MutationAddItem, MutationRemoveItem, MutationSetQuantity,
		MutationAddModifier, MutationRemoveModifier, MutationSplit:
		return true
	default:
		return false
	}
}

// ServerOrigin reports whether the mutation is one the ledger records on
// its own behalf: reopen, settle and payment voids.
func (m *Mutation) ServerOrigin() bool {
	switch m.Kind {
	case MutationReopen, MutationSettle, MutationPaymentVoid:
		return true
	default:
		return false
	}
}

// Submittable reports whether a terminal may queue the mutation.
func (m *Mutation) Submittable() bool {
	return m.Kind != "" && !m.ServerOrigin()
}

// Relayable reports whether an edge may forward the mutation upstream.
// Server-origin kinds qualify once they carry what the cloud needs to
// replay them.
func (m *Mutation) Relayable() bool {
	switch m.Kind {
	case "":
		return false
	case MutationSettle:
		return m.Payment != nil && m.Payment.Reference != "" && m.Payment.Amount > 0
	case MutationPaymentVoid:
		return m.Reference != ""
	default:
		return true
	}
}

// Actor identifies who issued a mutation.
type Actor struct {
	VenueID    string `json:"venue_id" validate:"required,max=64"`
	TerminalID string `json:"terminal_id" validate:"max=64"`
	EmployeeID string `json:"employee_id,omitempty" validate:"max=64"`
	Role       string `json:"role,omitempty" validate:"max=32"`
}
