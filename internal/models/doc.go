// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package models defines the data structures shared by the ledger, payments,
outbox, fan-out and API layers.

Key Components:

  - Order, OrderItem, Modifier, PaymentLine: the authoritative order record
  - OrderStatus: lifecycle states and the allowed transitions between them
  - Mutation, Actor: a single change submitted by a terminal and who sent it
  - Snapshot, Delta: what a terminal receives after a mutation
  - OutboxBatch, OutboxSubmission, SubmissionResult: the edge-to-cloud wire format
  - OrderChanged, FleetCommand: events published on the message bus
  - APIResponse, APIError: the standard HTTP envelope and error codes

Money:

Amounts are integer minor units (cents). Totals are recomputed by
Order.Recalculate from live items and captured payments; clients never send
totals.

Usage Example:

	import "github.com/tomtom215/tabline/internal/models"

	m := models.Mutation{
	    Kind:     models.MutationAddItem,
	    ItemID:   uuid.NewString(),
	    SKU:      "burger",
	    Quantity: 2,
	}
	if !m.Submittable() {
	    return errors.New("server-origin mutation")
	}

Status Transitions:

	draft ──▶ sent ──▶ split ──▶ partially_paid ──▶ paid ──▶ closed
	  │         │        │              │
	  └─────────┴────────┴──────────────┴──▶ voided / cancelled

Closed, voided and cancelled are terminal; only a manager reopen leaves them.

Validation:

Request structs carry go-playground/validator tags and are checked by the
API layer before they reach the ledger. The server-origin kinds (reopen,
settle, payment_void) pass struct validation so an edge can relay them;
the ledger accepts them only through its own entry points or from an
edge actor's outbox batch.

Thread Safety:

Models are plain values with no internal locking. The ledger hands out
clones (Order.Clone) so callers may read or modify them freely.
*/
package models
