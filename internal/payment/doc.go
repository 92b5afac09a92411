// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package payment mirrors card-present transactions from an external processor
onto orders in the ledger.

Each authorization has one Record, keyed by reference, whose state moves
through:

	none -> authorized | partial_authorized | stored_offline | failed
	stored_offline -> authorized | partial_authorized | failed | voided
	authorized, partial_authorized -> captured | voided
	captured -> settled | voided

A capture runs inside ledger.Settle while the order's row lock is held, so
the processor capture and the paid status commit together. If the ledger
write fails after the processor captured, the service issues a compensating
void. If that void also fails the record is flagged irreconcilable, a
critical audit event is emitted and *apperr.FatalError is returned.

When the processor is unreachable and the caller allows it, the
authorization is stored offline (SAF) and reported as provisionally
accepted. ForwardBatch later replays queued transactions in FIFO order with
the force-offline marker, and CloseBatch refuses to close while anything is
still queued unless forced.

The processor is the source of truth: Reconcile overwrites the record with
what the processor reports.
*/
package payment
