// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

// ErrOfflinePending is returned by CloseBatch while transactions are still
// stored offline.
var ErrOfflinePending = errors.New("offline payments are still queued")

// OfflinePendingError carries the queue depth behind ErrOfflinePending.
type OfflinePendingError struct {
	Depth int
}

// Error implements the error interface.
func (e *OfflinePendingError) Error() string {
	return fmt.Sprintf("%d offline payment(s) have not been forwarded; forward them or close with force", e.Depth)
}

// Unwrap returns ErrOfflinePending.
func (e *OfflinePendingError) Unwrap() error {
	return ErrOfflinePending
}

// SAFStatus reports the store-and-forward queue to operators.
type SAFStatus struct {
	Depth          int        `json:"depth"`
	Forwarding     bool       `json:"forwarding"`
	LastForwardAt  *time.Time `json:"last_forward_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	OldestQueuedAt *time.Time `json:"oldest_queued_at,omitempty"`
}

// ForwardResult summarises one ForwardBatch run.
type ForwardResult struct {
	Captured  int `json:"captured"`
	Declined  int `json:"declined"`
	Voided    int `json:"voided"`
	Remaining int `json:"remaining"`
}

// BatchSummary is the outcome of CloseBatch.
type BatchSummary struct {
	Settled        int          `json:"settled"`
	Total          models.Money `json:"total"`
	OfflinePending int          `json:"offline_pending"`
	Forced         bool         `json:"forced"`
	ClosedAt       time.Time    `json:"closed_at"`
}

// Depth returns the number of transactions stored offline.
func (s *Service) Depth() int {
	return s.store.Depth()
}

// Status returns the SAF queue status.
func (s *Service) Status() SAFStatus {
	s.safMu.Lock()
	st := s.safStatus
	s.safMu.Unlock()

	st.Depth = s.store.Depth()
	if _, items, err := s.store.queued(1); err == nil && len(items) == 1 {
		t := items[0].QueuedAt
		st.OldestQueuedAt = &t
	}
	return st
}

// ProcessorAvailable reports whether the processor breaker is closed. A
// processor without a breaker is always considered available.
func (s *Service) ProcessorAvailable() bool {
	if a, ok := s.proc.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// ForwardBatch drains stored-offline transactions in FIFO order: each one
// is authorized with the force-offline marker, captured and settled to its
// order. It stops at the first transient failure so queue order holds.
func (s *Service) ForwardBatch(ctx context.Context) (ForwardResult, error) {
	s.safMu.Lock()
	if s.safStatus.Forwarding {
		s.safMu.Unlock()
		return ForwardResult{Remaining: s.store.Depth()}, nil
	}
	s.safStatus.Forwarding = true
	s.safMu.Unlock()

	res, err := s.forward(ctx)

	now := s.now()
	s.safMu.Lock()
	s.safStatus.Forwarding = false
	s.safStatus.LastForwardAt = &now
	s.safStatus.LastError = ""
	if err != nil {
		s.safStatus.LastError = err.Error()
	}
	s.safMu.Unlock()

	res.Remaining = s.store.Depth()
	if res.Captured+res.Declined+res.Voided > 0 || err != nil {
		s.logger.Info().Err(err).
			Int("captured", res.Captured).
			Int("declined", res.Declined).
			Int("voided", res.Voided).
			Int("remaining", res.Remaining).
			Msg("Store-and-forward batch run")
	}
	return res, err
}

func (s *Service) forward(ctx context.Context) (ForwardResult, error) {
	var res ForwardResult
	keys, items, err := s.store.queued(s.cfg.ForwardBatchSize)
	if err != nil {
		return res, err
	}

	for i := range items {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		outcome, err := s.forwardOne(ctx, items[i].Reference)
		if err != nil {
			if apperr.IsRetryable(err) {
				metrics.SAFForwarded.WithLabelValues("retry").Inc()
				return res, err
			}
			// Not retryable: leave the record for an operator, keep the queue moving.
			s.logger.Error().Err(err).Str("reference", items[i].Reference).Msg("Stored-offline payment could not be forwarded")
		}
		switch outcome {
		case StateCaptured:
			res.Captured++
		case StateFailed:
			res.Declined++
		case StateVoided:
			res.Voided++
		}
		if err := s.store.dequeue(keys[i]); err != nil {
			return res, err
		}
	}
	return res, nil
}

// forwardOne pushes one queued record to the processor and returns its
// final state.
func (s *Service) forwardOne(ctx context.Context, reference string) (State, error) {
	release, err := s.lock(ctx, reference)
	if err != nil {
		return "", err
	}
	defer release()

	rec, err := s.store.Get(ctx, reference)
	if err != nil {
		return "", err
	}
	actor := models.Actor{VenueID: rec.VenueID, TerminalID: rec.TerminalID, Role: "system"}

	if rec.State == StateStoredOffline {
		resp, err := s.proc.Authorize(ctx, AuthorizeRequest{
			IdempotencyKey: rec.IdempotencyKey,
			OrderID:        rec.OrderID,
			VenueID:        rec.VenueID,
			TerminalID:     rec.TerminalID,
			Amount:         rec.Requested,
			ForceOffline:   true,
		})
		if err != nil {
			return "", err
		}
		rec.ProcessorReference = resp.Reference
		now := s.now()
		switch {
		case resp.Outcome == OutcomeDeclined:
			rec.Approved = 0
			_ = rec.transition(StateFailed, now, "declined when forwarded")
			metrics.SAFForwarded.WithLabelValues("declined").Inc()
			if err := s.store.Save(ctx, rec); err != nil {
				return "", err
			}
			s.logPayment(ctx, audit.EventTypePaymentForwarded, actor, rec, 0, audit.OutcomeFailure)
			return StateFailed, nil
		case resp.Outcome == OutcomePartial && resp.Approved < rec.Requested:
			rec.Approved = resp.Approved
			_ = rec.transition(StatePartialAuthorized, now, "partially approved when forwarded")
		default:
			rec.Approved = rec.Requested
			_ = rec.transition(StateAuthorized, now, "approved when forwarded")
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return "", err
		}
	}

	if !rec.State.Capturable() {
		// Voided or otherwise resolved while queued.
		return rec.State, nil
	}

	captured, err := s.capture(ctx, rec, CaptureCommand{
		Reference:      rec.Reference,
		Amount:         rec.Remaining(),
		IdempotencyKey: "saf-capture-" + rec.Reference,
		Actor:          actor,
	})
	if err != nil {
		if apperr.IsRetryable(err) {
			return "", err
		}
		cur, gerr := s.store.Get(ctx, reference)
		if gerr != nil {
			return "", errors.Join(err, gerr)
		}
		if cur.State.Capturable() {
			// The order refused the payment; release the hold.
			if verr := s.proc.Void(ctx, cur.processorRef()); verr != nil {
				return "", verr
			}
			_ = cur.transition(StateVoided, s.now(), "order refused forwarded payment: "+err.Error())
			if serr := s.store.Save(ctx, cur); serr != nil {
				return "", errors.Join(err, serr)
			}
		}
		return cur.State, err
	}

	metrics.SAFForwarded.WithLabelValues("captured").Inc()
	s.logPayment(ctx, audit.EventTypePaymentForwarded, actor, captured, captured.Captured, audit.OutcomeSuccess)
	return captured.State, nil
}

// CloseBatch settles every captured payment. It refuses with
// *OfflinePendingError while offline payments are queued unless force is set.
func (s *Service) CloseBatch(ctx context.Context, force bool, actor models.Actor) (*BatchSummary, error) {
	depth := s.store.Depth()
	if depth > 0 && !force {
		return nil, &OfflinePendingError{Depth: depth}
	}

	captured, err := s.store.List(ctx, func(r *Record) bool {
		return r.State == StateCaptured && r.VenueID == actor.VenueID && !r.Irreconcilable
	})
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{OfflinePending: depth, Forced: force && depth > 0, ClosedAt: s.now()}
	for i := range captured {
		ref := captured[i].Reference
		release, err := s.lock(ctx, ref)
		if err != nil {
			return summary, err
		}
		rec, err := s.store.Get(ctx, ref)
		if err == nil && rec.State == StateCaptured {
			_ = rec.transition(StateSettled, summary.ClosedAt, "batch closed")
			err = s.store.Save(ctx, rec)
			if err == nil {
				summary.Settled++
				summary.Total += rec.Captured
			}
		}
		release()
		if err != nil {
			return summary, err
		}
	}

	if s.audit != nil {
		s.audit.Log(ctx, &audit.Event{
			Type:        audit.EventTypeBatchClosed,
			Severity:    batchSeverity(summary),
			Outcome:     audit.OutcomeSuccess,
			Actor:       audit.ActorFrom(actor),
			Target:      &audit.Target{ID: actor.VenueID, Type: "venue"},
			Action:      "close_batch",
			Description: fmt.Sprintf("Batch closed: %d payments, total %d, %d offline pending", summary.Settled, summary.Total, depth),
		})
	}
	log := s.logger.Info()
	if summary.Forced {
		log = s.logger.Warn()
	}
	log.Int("settled", summary.Settled).
		Int64("total", int64(summary.Total)).
		Int("offline_pending", depth).
		Bool("forced", summary.Forced).
		Msg("Batch closed")
	return summary, nil
}

func batchSeverity(s *BatchSummary) audit.Severity {
	if s.Forced {
		return audit.SeverityWarning
	}
	return audit.SeverityInfo
}
