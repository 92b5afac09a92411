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

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/payment"
)

// defaultRetryAfter is sent with 503 responses when the cause carries no hint.
const defaultRetryAfter = time.Second

// maxBodyBytes bounds request bodies; an outbox batch of 200 entries fits
// comfortably.
const maxBodyBytes = 1 << 20

// respondJSON sends a success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	writeEnvelope(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: &models.APIError{Code: code, Message: message, Details: details},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, resp *models.APIResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondAppError maps a ledger, payment or outbox error onto the envelope.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	var offline *payment.OfflinePendingError
	if errors.As(err, &offline) {
		respondError(w, r, http.StatusConflict, models.CodeOfflinePending, err.Error(),
			map[string]interface{}{"offline_pending": offline.Depth})
		return
	}

	switch apperr.Classify(err) {
	case apperr.ClassConflict:
		c, _ := apperr.IsConflict(err)
		respondError(w, r, http.StatusConflict, models.CodeConflict,
			"order changed on another terminal; refresh and try again",
			map[string]interface{}{
				"order_id":         c.OrderID,
				"expected_version": c.ExpectedVersion,
				"current_version":  c.CurrentVersion,
			})

	case apperr.ClassValidation:
		var v *apperr.ValidationError
		errors.As(err, &v)
		var details map[string]interface{}
		if v.Field != "" {
			details = map[string]interface{}{"field": v.Field}
		}
		respondError(w, r, http.StatusUnprocessableEntity, models.CodeValidation, v.Message, details)

	case apperr.ClassTransient:
		retryAfter := defaultRetryAfter
		var t *apperr.TransientError
		if errors.As(err, &t) && t.RetryAfter > 0 {
			retryAfter = t.RetryAfter
		}
		w.Header().Set("Retry-After", strconv.Itoa(int((retryAfter+time.Second-1)/time.Second)))
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Request failed transiently")

		var (
			reversed *payment.ReversedError
			commit   *apperr.CommitError
		)
		switch {
		case errors.As(err, &reversed):
			respondError(w, r, http.StatusServiceUnavailable, models.CodeNotSaved,
				"payment reversed; order could not be updated, retry",
				map[string]interface{}{"reference": reversed.Reference, "order_id": reversed.OrderID})
		case errors.As(err, &commit):
			respondError(w, r, http.StatusServiceUnavailable, models.CodeNotSaved,
				"order could not be saved; retry", map[string]interface{}{"order_id": commit.OrderID})
		default:
			respondError(w, r, http.StatusServiceUnavailable, models.CodeBusy, "temporarily unavailable; retry shortly", nil)
		}

	case apperr.ClassFatal:
		var f *apperr.FatalError
		errors.As(err, &f)
		logging.Ctx(r.Context()).Error().Err(err).Fields(f.Context).Msg("Irreconcilable failure")
		respondError(w, r, http.StatusInternalServerError, models.CodeFatal,
			"the payment and the order disagree; a manager must resolve this", f.Context)

	case apperr.ClassNotFound:
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, err.Error(), nil)

	case apperr.ClassForbidden:
		respondError(w, r, http.StatusForbidden, models.CodeForbidden, "insufficient permissions", nil)

	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled API error")
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "internal error", nil)
	}
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected
// so a misspelt expected_version does not silently become zero.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, models.CodeBadRequest, "malformed JSON body: "+err.Error(), nil)
		return false
	}
	return true
}
