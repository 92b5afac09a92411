// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package logging provides centralized zerolog-based logging for Tabline.
//
// Every component logs through the global logger configured here:
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Role: "edge", VenueID: "v1"})
//	logging.Info().Str("order_id", id).Int64("version", v).Msg("Order mutated")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Outbox dispatch failed")
//
// Standard field names used across the codebase are order_id, venue_id,
// terminal_id, version, reference and seq. Card data and secrets must go
// through the Redact helpers before they reach a log line.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn or error.
	// Unknown values fall back to info.
	Level string

	// Format is json or console.
	Format string

	Caller bool

	// Role and VenueID identify the node. When set they are stamped on every
	// line as node_role and node_venue so shipped edge logs stay attributable.
	Role    string
	VenueID string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

var (
	mu   sync.RWMutex
	root zerolog.Logger
)

//nolint:gochecknoinits // logging must work before explicit Init()
func init() {
	root = build(DefaultConfig())
}

// Init (re)configures the global logger. Safe to call more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	root = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	// Always timestamped: edge and cloud logs are merged by time.
	c := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		c = c.Caller()
	}
	if cfg.Role != "" {
		c = c.Str("node_role", cfg.Role)
	}
	if cfg.VenueID != "" {
		c = c.Str("node_venue", cfg.VenueID)
	}
	return c.Logger()
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// With starts a child logger context off the global logger.
func With() zerolog.Context {
	l := Logger()
	return l.With()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts an info level event.
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a warn level event.
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts an error level event.
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal logs and then calls os.Exit(1).
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}
