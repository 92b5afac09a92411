// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/payment"
)

// AuthorizePayment authorizes an amount against an order. A decline is a
// 200 with the record in state failed. With allow_offline set an
// unreachable processor yields a stored_offline record.
func (h *Handler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req AuthorizePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.payments.Authorize(r.Context(), payment.AuthorizeCommand{
		OrderID:        req.OrderID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		AllowOffline:   req.AllowOffline,
		Actor:          actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

// GetPayment returns one payment record.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	if rec, ok := h.venuePayment(w, r); ok {
		respondJSON(w, r, http.StatusOK, rec)
	}
}

// OrderPayments lists payment records linked to an order.
func (h *Handler) OrderPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	order, err := h.ledger.Get(r.Context(), actor.VenueID, chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	records, err := h.payments.ForOrder(r.Context(), order.ID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, records)
}

// CapturePayment captures against an authorization and settles the order.
func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rec, ok := h.venuePayment(w, r)
	if !ok {
		return
	}
	var req CapturePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.payments.Capture(r.Context(), payment.CaptureCommand{
		Reference:       rec.Reference,
		Amount:          req.Amount,
		ExpectedVersion: req.ExpectedVersion,
		IdempotencyKey:  req.IdempotencyKey,
		Actor:           actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

// VoidPayment voids an authorization or capture.
func (h *Handler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rec, ok := h.venuePayment(w, r)
	if !ok {
		return
	}
	var req VoidPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.payments.Void(r.Context(), payment.VoidCommand{
		Reference:      rec.Reference,
		IdempotencyKey: req.IdempotencyKey,
		Actor:          actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

// ReconcilePayment queries the processor and adopts its state.
func (h *Handler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rec, ok := h.venuePayment(w, r)
	if !ok {
		return
	}
	rec, err := h.payments.Reconcile(r.Context(), rec.Reference, actor)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

// venuePayment loads {ref} and hides records of other venues.
func (h *Handler) venuePayment(w http.ResponseWriter, r *http.Request) (*payment.Record, bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return nil, false
	}
	ref := chi.URLParam(r, "ref")
	rec, err := h.payments.Get(r.Context(), ref)
	if err == nil && rec.VenueID != actor.VenueID {
		err = fmt.Errorf("payment %s: %w", ref, apperr.ErrNotFound)
	}
	if err != nil {
		respondAppError(w, r, err)
		return nil, false
	}
	return rec, true
}

// SAFStatus reports the store-and-forward queue.
func (h *Handler) SAFStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.payments.Status())
}

// SAFForward drains the store-and-forward queue now.
func (h *Handler) SAFForward(w http.ResponseWriter, r *http.Request) {
	if !h.payments.ProcessorAvailable() {
		respondAppError(w, r, apperr.Transient("saf forward", payment.ErrCircuitOpen))
		return
	}
	res, err := h.payments.ForwardBatch(r.Context())
	if err != nil && res.Captured+res.Declined+res.Voided == 0 {
		respondAppError(w, r, err)
		return
	}
	// A partial run is a success: forwarded records are committed and the
	// rest stay queued in order.
	respondJSON(w, r, http.StatusOK, res)
}

// CloseBatch settles captured payments. It answers 409 OFFLINE_PENDING
// while offline payments are queued unless ?force=true.
func (h *Handler) CloseBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		var err error
		if force, err = strconv.ParseBool(v); err != nil {
			respondAppError(w, r, apperr.Validation("force", "force must be true or false"))
			return
		}
	}

	summary, err := h.payments.CloseBatch(r.Context(), force, actor)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

