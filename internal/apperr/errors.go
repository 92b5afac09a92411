// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package apperr defines the error taxonomy shared by the ledger, the outbox,
// the payment state machine and the HTTP API.
//
// Every error that crosses a component boundary classifies into exactly one
// Class:
//
//   - ClassConflict: stale version. Resolved by refetch and retry.
//   - ClassValidation: malformed or out-of-range request. Never retried.
//   - ClassTransient: processor, network or lock wait unavailable, or a
//     ledger write that did not persist. Retried with backoff.
//   - ClassFatal: irreconcilable state that needs an operator.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class is the retry/propagation class of an error.
type Class int

const (
	// ClassUnknown is returned for errors that carry no classification.
	ClassUnknown Class = iota
	// ClassConflict indicates a stale expected version.
	ClassConflict
	// ClassValidation indicates a rejected request that must not be retried.
	ClassValidation
	// ClassTransient indicates a temporary failure worth retrying.
	ClassTransient
	// ClassFatal indicates state that could not be made consistent.
	ClassFatal
	// ClassNotFound indicates a missing order, entry or reference.
	ClassNotFound
	// ClassForbidden indicates an authorization failure.
	ClassForbidden
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassConflict:
		return "conflict"
	case ClassValidation:
		return "validation"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	case ClassNotFound:
		return "not_found"
	case ClassForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned when a row lock cannot be acquired within the
	// configured lock wait. Callers should retry.
	ErrBusy = errors.New("order is busy, retry shortly")

	// ErrNotFound is returned when an order, entry or reference does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not allowed to perform an action.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable is returned when a downstream dependency cannot be reached.
	ErrUnavailable = errors.New("service unavailable")
)

// ConflictError reports a stale expected version. CurrentVersion is the
// authoritative version the caller must refetch and rebase onto.
type ConflictError struct {
	OrderID         string
	ExpectedVersion int64
	CurrentVersion  int64
}

// NewConflict creates a conflict error.
func NewConflict(orderID string, expected, current int64) *ConflictError {
	return &ConflictError{OrderID: orderID, ExpectedVersion: expected, CurrentVersion: current}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s changed: expected version %d, current version %d",
		e.OrderID, e.ExpectedVersion, e.CurrentVersion)
}

// ValidationError reports a request that is rejected and must not be retried.
// Message is shown to the end user and should say what to do next.
type ValidationError struct {
	Field   string
	Message string
}

// Validation creates a validation error.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Validationf creates a validation error with a formatted message.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// TransientError wraps a failure that is expected to clear on its own.
type TransientError struct {
	Op         string
	Err        error
	RetryAfter time.Duration
}

// Transient wraps err as a transient failure of op.
func Transient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Err == nil {
		return e.Op + ": temporarily unavailable"
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError reports state that could not be made consistent, such as a
// capture that succeeded at the processor while both the ledger write and
// the compensating void failed. Context carries the identifiers an operator
// needs to resolve it by hand.
type FatalError struct {
	Op      string
	Err     error
	Context map[string]any
}

// Fatal wraps err as an irreconcilable failure of op.
func Fatal(op string, err error, kv map[string]any) *FatalError {
	return &FatalError{Op: op, Err: err, Context: kv}
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: irreconcilable: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// CommitError is returned by the ledger when a locked transaction ran its
// callback successfully but the resulting state could not be persisted.
// Callers that performed external side effects inside the callback must
// compensate. Nothing was persisted, so it classifies as transient.
type CommitError struct {
	OrderID string
	Err     error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	return fmt.Sprintf("commit order %s: %v", e.OrderID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CommitError) Unwrap() error {
	return e.Err
}

// Classify returns the class of err.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var (
		conflict   *ConflictError
		validation *ValidationError
		transient  *TransientError
		fatal      *FatalError
		commit     *CommitError
	)
	switch {
	case errors.As(err, &fatal):
		return ClassFatal
	case errors.As(err, &commit):
		return ClassTransient
	case errors.As(err, &conflict):
		return ClassConflict
	case errors.As(err, &validation):
		return ClassValidation
	case errors.As(err, &transient):
		return ClassTransient
	case errors.Is(err, ErrBusy), errors.Is(err, ErrUnavailable):
		return ClassTransient
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrForbidden):
		return ClassForbidden
	default:
		return ClassUnknown
	}
}

// IsConflict reports whether err is a stale-version conflict and returns it.
func IsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// IsRetryable reports whether a caller should retry err with backoff.
func IsRetryable(err error) bool {
	return Classify(err) == ClassTransient
}
