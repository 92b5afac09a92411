// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	venueIDKey    contextKey = "venue_id"
	terminalIDKey contextKey = "terminal_id"
	loggerKey     contextKey = "logger"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithTerminal tags the context with the authenticated venue and
// terminal so every log line written through Ctx carries them.
func ContextWithTerminal(ctx context.Context, venueID, terminalID string) context.Context {
	ctx = context.WithValue(ctx, venueIDKey, venueID)
	return context.WithValue(ctx, terminalIDKey, terminalID)
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves a logger from context, falling back to the
// global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger with request_id, venue_id and terminal_id added
// from the context when present.
//
//	logging.Ctx(ctx).Info().Str("order_id", id).Msg("Order created")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := LoggerFromContext(ctx)
	logCtx := logger.With()

	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	if v, ok := ctx.Value(venueIDKey).(string); ok && v != "" {
		logCtx = logCtx.Str("venue_id", v)
	}
	if t, ok := ctx.Value(terminalIDKey).(string); ok && t != "" {
		logCtx = logCtx.Str("terminal_id", t)
	}

	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
//
//	log := logging.WithComponent("outbox")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
