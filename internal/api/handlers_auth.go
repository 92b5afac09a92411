// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// TerminalLogin exchanges an enrolled terminal's secret for a JWT.
func (h *Handler) TerminalLogin(w http.ResponseWriter, r *http.Request) {
	if h.terminals == nil {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "terminal login is not enabled", nil)
		return
	}

	var req models.TerminalLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAppError(w, r, verr.ToAppError())
		return
	}

	resp, err := h.terminals.Login(r.Context(), &req)
	if err != nil {
		var locked *auth.LockedError
		switch {
		case errors.As(err, &locked):
			w.Header().Set("Retry-After", strconv.Itoa(int(locked.Remaining.Round(time.Second)/time.Second)))
			respondError(w, r, http.StatusTooManyRequests, models.CodeUnauthorized, "too many failed attempts; try again later", nil)
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "invalid terminal credentials", nil)
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("Terminal login failed")
			respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "login failed", nil)
		}
		return
	}
	respondJSON(w, r, http.StatusOK, resp)
}
