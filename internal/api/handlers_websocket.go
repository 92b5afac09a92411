// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"

	"github.com/tomtom215/tabline/internal/models"
	ws "github.com/tomtom215/tabline/internal/websocket"
)

// WebSocket upgrades to the notification stream. The terminal's identity
// comes from its token, so it can only subscribe within its own venue.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if h.wsHub == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.CodeBusy, "notifications are not available", nil)
		return
	}
	h.wsHub.ServeWS(w, r, ws.Identity{
		VenueID:    actor.VenueID,
		TerminalID: actor.TerminalID,
		Role:       actor.Role,
	})
}
