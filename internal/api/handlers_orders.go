// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tabline/internal/ledger"
)

// ListOrders returns the open orders of the caller's venue.
//
// @Summary List open orders
// @Tags Orders
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.Order}
// @Security BearerAuth
// @Router /orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	orders, err := h.ledger.List(r.Context(), actor.VenueID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, orders)
}

// GetOrder returns one order.
//
// @Summary Get an order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.APIResponse{data=models.Order}
// @Failure 404 {object} models.APIResponse "No such order"
// @Security BearerAuth
// @Router /orders/{id} [get]
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	order, err := h.ledger.Get(r.Context(), actor.VenueID, chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, order)
}

// CreateOrder creates a draft order at version 1. A replayed create
// answers 200 with the original order instead of 201.
//
// @Summary Create an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param body body CreateOrderRequest true "Order to create"
// @Success 201 {object} models.APIResponse{data=ledger.Result}
// @Success 200 {object} models.APIResponse{data=ledger.Result} "Replayed create"
// @Failure 409 {object} models.APIResponse "Order id already used"
// @Failure 422 {object} models.APIResponse
// @Security BearerAuth
// @Router /orders [post]
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.ledger.Create(r.Context(), ledger.CreateRequest{
		OrderID:        req.OrderID,
		IdempotencyKey: req.IdempotencyKey,
		TableLabel:     req.TableLabel,
		Actor:          actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, r, status, res)
}

// ApplyMutation applies one mutation to an order.
//
// @Summary Apply a mutation
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body MutationRequest true "Mutation"
// @Success 200 {object} models.APIResponse{data=ledger.Result}
// @Failure 409 {object} models.APIResponse "Version conflict; details.current_version is the version to rebase onto"
// @Failure 422 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse "Order busy"
// @Security BearerAuth
// @Router /orders/{id}/mutations [post]
func (h *Handler) ApplyMutation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req MutationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.ledger.Apply(r.Context(), ledger.ApplyRequest{
		OrderID:         chi.URLParam(r, "id"),
		ExpectedVersion: req.ExpectedVersion,
		IdempotencyKey:  req.IdempotencyKey,
		Mutation:        req.Mutation,
		Actor:           actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// ReopenOrder moves a finished order back to sent. The ledger re-checks
// the reopen permission so the rule holds for every caller.
//
// @Summary Reopen an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body ReopenOrderRequest true "Reopen request"
// @Success 200 {object} models.APIResponse{data=ledger.Result}
// @Failure 409 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse "Reopened too recently"
// @Security BearerAuth
// @Router /orders/{id}/reopen [post]
func (h *Handler) ReopenOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req ReopenOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.ledger.Reopen(r.Context(), ledger.ReopenRequest{
		OrderID:         chi.URLParam(r, "id"),
		ExpectedVersion: req.ExpectedVersion,
		IdempotencyKey:  req.IdempotencyKey,
		Reason:          req.Reason,
		Actor:           actor,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}
