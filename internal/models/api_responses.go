// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

import (
	"time"
)

// APIResponse is the envelope used by every HTTP endpoint.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"id": "b3c1...", "version": 4, ...},
//	  "metadata": {"timestamp": "2026-03-14T19:02:11Z"}
//	}
//
// Example conflict response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VERSION_CONFLICT",
//	    "message": "order changed on another terminal; refresh and try again",
//	    "details": {"current_version": 7}
//	  },
//	  "metadata": {"timestamp": "2026-03-14T19:02:11Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError is the structured error body.
//
// Error codes:
//   - VERSION_CONFLICT (409): details.current_version carries the version to rebase onto
//   - VALIDATION_ERROR (422), BAD_REQUEST (400)
//   - BUSY (503, Retry-After): the order is locked or a dependency is down
//   - FATAL_IRRECONCILABLE (500): needs an operator
//   - NOT_FOUND (404), FORBIDDEN (403), UNAUTHORIZED (401)
//   - OFFLINE_PENDING (409): batch close refused while offline payments are queued
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// API error codes.
const (
	CodeConflict       = "VERSION_CONFLICT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeBadRequest     = "BAD_REQUEST"
	CodeBusy           = "BUSY"
	CodeFatal          = "FATAL_IRRECONCILABLE"
	CodeNotFound       = "NOT_FOUND"
	CodeForbidden      = "FORBIDDEN"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeOfflinePending = "OFFLINE_PENDING"
	CodeNotSaved       = "NOT_SAVED"
	CodeInternal       = "INTERNAL_ERROR"
)

// TerminalLoginRequest enrols a terminal and returns a signed token.
type TerminalLoginRequest struct {
	VenueID    string `json:"venue_id" validate:"required,max=64"`
	TerminalID string `json:"terminal_id" validate:"required,max=64"`
	EmployeeID string `json:"employee_id" validate:"omitempty,max=64"`
	Secret     string `json:"secret" validate:"required,min=8,max=128"`
}

// TerminalLoginResponse carries the signed terminal token.
type TerminalLoginResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	VenueID    string    `json:"venue_id"`
	TerminalID string    `json:"terminal_id"`
	Role       string    `json:"role"`
}
