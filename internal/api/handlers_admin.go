// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// maxAuditLimit caps one audit page.
const maxAuditLimit = 1000

// OutboxStatusResponse is the body of the outbox status endpoint.
type OutboxStatusResponse struct {
	Queued int   `json:"queued"`
	Dead   int   `json:"dead"`
	Cursor int64 `json:"cursor"`
}

// OutboxStatus reports the edge outbox depth and sync cursor.
func (h *Handler) OutboxStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireOutbox(w, r) {
		return
	}
	store := h.outbox.Store()
	queued, dead := store.Depth()
	cursor, err := store.Cursor(r.Context())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, OutboxStatusResponse{Queued: queued, Dead: dead, Cursor: cursor})
}

// DeadLetters lists dead-lettered outbox entries.
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	if !h.requireOutbox(w, r) {
		return
	}
	entries, err := h.outbox.DeadLetters(r.Context())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, entries)
}

// RequeueDeadLetter moves a dead letter to the tail of its order's queue.
func (h *Handler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	if !h.requireOutbox(w, r) {
		return
	}
	entry, err := h.outbox.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, entry)
}

func (h *Handler) requireOutbox(w http.ResponseWriter, r *http.Request) bool {
	if h.outbox == nil {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "this node has no outbox; it runs in the cloud role", nil)
		return false
	}
	return true
}

// AuditEvents queries the audit log. Only admins may read other venues.
//
// Query parameters: type (repeatable), severity (repeatable), venue_id,
// terminal_id, target_id, start, end (RFC 3339), q, limit.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if h.audit == nil {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "audit logging is disabled", nil)
		return
	}

	filter, err := parseAuditFilter(r, actor)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	total, err := h.audit.Count(r.Context(), filter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

func parseAuditFilter(r *http.Request, actor models.Actor) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()
	filter.VenueID = actor.VenueID
	if v := q.Get("venue_id"); v != "" && actor.Role == models.RoleAdmin {
		filter.VenueID = v
	}
	filter.TerminalID = q.Get("terminal_id")
	filter.TargetID = q.Get("target_id")
	filter.SearchText = q.Get("q")
	filter.RequestID = q.Get("request_id")
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	for _, s := range q["severity"] {
		filter.Severities = append(filter.Severities, audit.Severity(strings.ToLower(s)))
	}

	for name, dst := range map[string]**time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperr.Validationf(name, "%s must be an RFC 3339 timestamp", name)
		}
		*dst = &t
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxAuditLimit {
			return filter, apperr.Validationf("limit", "limit must be between 1 and %d", maxAuditLimit)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// FleetCommand publishes an operator command to the caller's venue. Kick
// also disconnects matching websocket sessions on this node.
func (h *Handler) FleetCommand(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req FleetCommandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAppError(w, r, verr.ToAppError())
		return
	}

	cmd := &models.FleetCommand{
		ID:         uuid.NewString(),
		Type:       req.Type,
		VenueID:    actor.VenueID,
		TerminalID: req.TerminalID,
		IssuedBy:   actor.TerminalID,
		IssuedAt:   time.Now().UTC(),
	}

	kicked := 0
	if cmd.Type == models.CommandKick && h.wsHub != nil {
		kicked = h.wsHub.Kick(cmd.VenueID, cmd.TerminalID)
	}
	if h.commands == nil {
		if cmd.Type != models.CommandKick {
			respondAppError(w, r, apperr.Transient("fleet command", apperr.ErrUnavailable))
			return
		}
	} else if err := h.commands.Publish(r.Context(), models.TopicFleetCommands, cmd, map[string]string{
		"venue_id": cmd.VenueID,
		"command":  string(cmd.Type),
	}); err != nil {
		respondAppError(w, r, apperr.Transient("fleet command", err))
		return
	}

	if h.audit != nil {
		h.audit.LogFleetCommand(r.Context(), actor, cmd)
	}
	logging.Ctx(r.Context()).Info().
		Str("command_id", cmd.ID).
		Str("command", string(cmd.Type)).
		Str("target_terminal", cmd.TerminalID).
		Int("sessions_kicked", kicked).
		Msg("Fleet command issued")

	respondJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"command":         cmd,
		"sessions_kicked": kicked,
	})
}
