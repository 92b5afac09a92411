// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"errors"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
)

// ApplyBatch applies an outbox batch posted by a terminal or edge relay.
//
// Entries are applied in the order given. Once an entry for an order fails
// to confirm, later entries for that order in the same batch are skipped so
// the sender never sees sequence N+1 applied ahead of N. Entries for other
// orders are unaffected.
func (l *Ledger) ApplyBatch(ctx context.Context, actor models.Actor, batch models.OutboxBatch) *models.OutboxResponse {
	// An edge relays on behalf of the terminals behind it.
	if actor.Role == models.RoleEdge && batch.TerminalID != "" {
		actor.TerminalID = batch.TerminalID
	}

	resp := &models.OutboxResponse{Results: make([]models.SubmissionResult, 0, len(batch.Entries))}
	blocked := make(map[string]bool)

	for i := range batch.Entries {
		sub := &batch.Entries[i]
		if blocked[sub.OrderID] {
			resp.Results = append(resp.Results, models.SubmissionResult{
				EntryID: sub.EntryID,
				Status:  models.SubmissionSkipped,
				Error:   "an earlier entry for this order did not confirm",
			})
			continue
		}

		res, err := l.applySubmission(ctx, actor, sub)
		result := submissionResult(sub.EntryID, res, err)
		if result.Status != models.SubmissionConfirmed {
			blocked[sub.OrderID] = true
			logging.Debug().
				Str("order_id", sub.OrderID).
				Str("entry_id", sub.EntryID).
				Str("terminal_id", batch.TerminalID).
				Str("status", string(result.Status)).
				Err(err).
				Msg("Outbox entry not confirmed")
		}
		resp.Results = append(resp.Results, result)
	}
	return resp
}

// applySubmission routes one entry. Server-origin kinds are accepted only
// from an edge, which already applied them to its own ledger; a settle
// replays the captured payment line without touching the processor.
func (l *Ledger) applySubmission(ctx context.Context, actor models.Actor, sub *models.OutboxSubmission) (*Result, error) {
	m := &sub.Mutation
	if !m.ServerOrigin() {
		return l.Apply(ctx, ApplyRequest{
			OrderID:         sub.OrderID,
			ExpectedVersion: sub.ExpectedVersion,
			IdempotencyKey:  sub.IdempotencyKey,
			Mutation:        *m,
			Actor:           actor,
		})
	}
	if actor.Role != models.RoleEdge {
		return nil, apperr.Validationf("kind", "%s is recorded by the server and cannot be submitted", m.Kind)
	}
	if !m.Relayable() {
		return nil, apperr.Validationf("mutation", "relayed %s is missing its payment details", m.Kind)
	}

	switch m.Kind {
	case models.MutationSettle:
		line := *m.Payment
		return l.Settle(ctx, SettleRequest{
			OrderID:         sub.OrderID,
			ExpectedVersion: sub.ExpectedVersion,
			IdempotencyKey:  sub.IdempotencyKey,
			Reference:       line.Reference,
			Amount:          line.Amount,
			Actor:           actor,
		}, func(context.Context, *models.Order) (models.PaymentLine, error) {
			return line, nil
		})
	case models.MutationPaymentVoid:
		return l.RecordPaymentVoid(ctx, PaymentVoidRequest{
			OrderID:        sub.OrderID,
			Reference:      m.Reference,
			IdempotencyKey: sub.IdempotencyKey,
			Actor:          actor,
		})
	default:
		return l.Reopen(ctx, ReopenRequest{
			OrderID:         sub.OrderID,
			ExpectedVersion: sub.ExpectedVersion,
			IdempotencyKey:  sub.IdempotencyKey,
			Reason:          m.Reason,
			Actor:           actor,
		})
	}
}

func submissionResult(entryID string, res *Result, err error) models.SubmissionResult {
	out := models.SubmissionResult{EntryID: entryID}
	if err == nil {
		out.Status = models.SubmissionConfirmed
		out.Replayed = res.Replayed
		out.Order = res.Order
		out.CurrentVersion = res.Version
		return out
	}

	out.Error = err.Error()
	switch apperr.Classify(err) {
	case apperr.ClassConflict:
		out.Status = models.SubmissionConflict
		if c, ok := apperr.IsConflict(err); ok {
			out.CurrentVersion = c.CurrentVersion
		}
	case apperr.ClassValidation, apperr.ClassNotFound, apperr.ClassForbidden:
		out.Status = models.SubmissionRejected
	case apperr.ClassFatal:
		out.Status = models.SubmissionFatal
	default:
		var commit *apperr.CommitError
		if errors.As(err, &commit) {
			out.Error = "order could not be saved; retry"
		}
		out.Status = models.SubmissionRetry
	}
	return out
}
