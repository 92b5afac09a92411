// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// CreateBackupRequest is the body of a manual snapshot request.
type CreateBackupRequest struct {
	Notes string `json:"notes" validate:"max=200"`
}

// BackupValidationResponse reports a checksum verification.
type BackupValidationResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ListBackups returns the local store snapshots, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	respondJSON(w, r, http.StatusOK, h.backups.ListBackups())
}

// CreateBackup takes a manual snapshot of the local store.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok || !h.requireBackups(w, r) {
		return
	}
	var req CreateBackupRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAppError(w, r, verr.ToAppError())
		return
	}

	b, err := h.backups.CreateBackup(r.Context(), backup.TriggerManual, req.Notes)
	if err != nil {
		respondAppError(w, r, backupError(err))
		return
	}
	if h.audit != nil {
		h.audit.LogAdminAction(r.Context(), actor, "storage.backup.manual",
			"Manual storage snapshot "+b.ID, map[string]any{"notes": req.Notes})
	}
	respondJSON(w, r, http.StatusCreated, b)
}

// ValidateBackup re-hashes a snapshot against its recorded checksum. A
// mismatch is reported in the body, not as an error status.
func (h *Handler) ValidateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackups(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.backups.Validate(id)
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusOK, BackupValidationResponse{ID: id, Valid: true})
	case errors.Is(err, backup.ErrChecksumMismatch):
		respondJSON(w, r, http.StatusOK, BackupValidationResponse{ID: id, Error: err.Error()})
	default:
		respondAppError(w, r, backupError(err))
	}
}

func (h *Handler) requireBackups(w http.ResponseWriter, r *http.Request) bool {
	if h.backups == nil {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "storage backups are disabled on this node", nil)
		return false
	}
	return true
}

// backupError maps backup sentinels onto API error classes.
func backupError(err error) error {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case errors.Is(err, backup.ErrInProgress):
		return apperr.Transient("storage backup", err)
	case errors.Is(err, backup.ErrDisabled):
		return apperr.Validation("backup", err.Error())
	default:
		return err
	}
}
