// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// Bootstrap returns every open order of the caller's venue with the cursor
// to pass to Delta.
//
// @Summary Venue snapshot
// @Tags Sync
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.Snapshot}
// @Failure 401 {object} models.APIResponse
// @Security BearerAuth
// @Router /bootstrap [get]
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	snap, err := h.ledger.Snapshot(r.Context(), actor.VenueID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// Delta returns orders changed after ?since=.
//
// @Summary Changes since a cursor
// @Tags Sync
// @Produce json
// @Param since query int true "Cursor from the last snapshot or delta" minimum(0)
// @Success 200 {object} models.APIResponse{data=models.Delta}
// @Failure 422 {object} models.APIResponse "Invalid cursor"
// @Security BearerAuth
// @Router /delta [get]
func (h *Handler) Delta(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil || since < 0 {
		respondAppError(w, r, apperr.Validation("since", "since must be a non-negative cursor"))
		return
	}
	delta, err := h.ledger.ChangesSince(r.Context(), actor.VenueID, since)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, delta)
}

// SubmitOutbox applies a batch of queued mutations and answers with a
// per-entry verdict. The response is 200 even when entries were rejected;
// the caller acts on each result.
//
// @Summary Submit an outbox batch
// @Tags Sync
// @Accept json
// @Produce json
// @Param body body models.OutboxBatch true "Queued mutations"
// @Success 200 {object} models.APIResponse{data=models.OutboxResponse} "Per-entry results"
// @Failure 422 {object} models.APIResponse "Malformed batch"
// @Failure 429 {object} models.APIResponse "Rate limited"
// @Security BearerAuth
// @Router /outbox [post]
func (h *Handler) SubmitOutbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var batch models.OutboxBatch
	if !decodeJSON(w, r, &batch) {
		return
	}
	if verr := validation.ValidateStruct(&batch); verr != nil {
		respondAppError(w, r, verr.ToAppError())
		return
	}
	// Only an edge relays for other terminals.
	if actor.Role != models.RoleEdge && batch.TerminalID != actor.TerminalID {
		respondAppError(w, r, apperr.Validation("terminal_id", "batch terminal does not match the authenticated terminal"))
		return
	}

	resp := h.ledger.ApplyBatch(r.Context(), actor, batch)
	logging.Ctx(r.Context()).Debug().
		Str("terminal_id", batch.TerminalID).
		Int("entries", len(batch.Entries)).
		Msg("Outbox batch applied")
	respondJSON(w, r, http.StatusOK, resp)
}
