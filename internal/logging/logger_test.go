// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if cfg.Output == nil {
		t.Error("expected default output to be set")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("order_id", "o-1").Msg("order mutated")

	out := buf.String()
	if !strings.Contains(out, "order mutated") {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, `"order_id":"o-1"`) {
		t.Errorf("expected order_id field, got: %s", out)
	}
	if !strings.Contains(out, `"time":`) {
		t.Errorf("expected timestamp, got: %s", out)
	}
}

func TestInitStampsNodeIdentity(t *testing.T) {
	defer Init(DefaultConfig())

	tests := []struct {
		name    string
		cfg     Config
		want    []string
		notWant []string
	}{
		{"edge", Config{Role: "edge", VenueID: "v1"}, []string{`"node_role":"edge"`, `"node_venue":"v1"`}, nil},
		{"cloud without venue", Config{Role: "cloud"}, []string{`"node_role":"cloud"`}, []string{"node_venue"}},
		{"unset", Config{}, nil, []string{"node_role", "node_venue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Output = &buf
			Init(tt.cfg)
			WithComponent("outbox").Info().Msg("tick")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %s in %s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("unexpected %s in %s", w, out)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" Warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestCtxAddsTerminalFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), newTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithTerminal(ctx, "venue-a", "term-7")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"venue_id":"venue-a"`, `"terminal_id":"term-7"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	logger := NewSlogLogger().With("service", "outbox").WithGroup("entry")
	logger.Error("dispatch failed", "seq", 4, "err", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"service":"outbox"`, `"entry.seq":4`, `"entry.err":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if !NewSlogHandler().Enabled(context.Background(), slog.LevelError) {
		t.Error("error level should be enabled")
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"pan", "4111 1111 1111 1234", "************1234"},
		{"card_number", "4111", "****"},
		{"pin", "1234", "***"},
		{"token", "short", "***"},
		{"token", "eyJhbGciOiJIUzI1NiJ9.payload", "eyJh...load"},
		{"order_id", "o-1", "o-1"},
	}
	for _, tt := range tests {
		if got := RedactValue(tt.key, tt.value); got != tt.want {
			t.Errorf("RedactValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func newTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
