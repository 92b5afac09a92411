// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Role != RoleCloud {
		t.Errorf("Server.Role = %q, want cloud", cfg.Server.Role)
	}
	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if cfg.Ledger.LockTimeout != 2*time.Second {
		t.Errorf("Ledger.LockTimeout = %v, want 2s", cfg.Ledger.LockTimeout)
	}
	if cfg.Ledger.IdempotencyTTL != 24*time.Hour {
		t.Errorf("Ledger.IdempotencyTTL = %v, want 24h", cfg.Ledger.IdempotencyTTL)
	}
	if cfg.Fanout.DebounceWindow != 75*time.Millisecond {
		t.Errorf("Fanout.DebounceWindow = %v, want 75ms", cfg.Fanout.DebounceWindow)
	}
	if cfg.Outbox.Backoff.MaxAttempts != 10 || cfg.Outbox.Backoff.Base != time.Second || cfg.Outbox.Backoff.Cap != 30*time.Second {
		t.Errorf("Outbox.Backoff = %+v, want 10 attempts 1s..30s", cfg.Outbox.Backoff)
	}
	if cfg.Outbox.Engine.MaxRebases != 5 {
		t.Errorf("Outbox.Engine.MaxRebases = %d, want 5", cfg.Outbox.Engine.MaxRebases)
	}
	if cfg.Payment.Processor != "simulated" {
		t.Errorf("Payment.Processor = %q, want simulated", cfg.Payment.Processor)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  role: edge
  venue_id: v1
  port: 9000
security:
  jwt_secret: "` + testSecret + `"
  terminals:
    - venue_id: v1
      terminal_id: t1
      secret_hash: "$2a$10$abcdefghijklmnopqrstuv"
      role: server
outbox:
  enabled: true
  upstream_url: https://cloud.example.com
  engine:
    workers: 8
payment:
  service:
    saf_forward_interval: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !cfg.IsEdge() || cfg.Server.VenueID != "v1" {
		t.Errorf("Server = %+v, want edge v1", cfg.Server)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Outbox.Engine.Workers != 8 {
		t.Errorf("Outbox.Engine.Workers = %d, want 8", cfg.Outbox.Engine.Workers)
	}
	if cfg.Outbox.Engine.PollInterval != 500*time.Millisecond {
		t.Errorf("Outbox.Engine.PollInterval = %v, want 500ms", cfg.Outbox.Engine.PollInterval)
	}
	// Untouched defaults survive a partial section.
	if cfg.Outbox.Engine.MaxRebases != 5 {
		t.Errorf("Outbox.Engine.MaxRebases = %d, want default 5", cfg.Outbox.Engine.MaxRebases)
	}
	if cfg.Payment.Service.SAFForwardInterval != 30*time.Second {
		t.Errorf("SAFForwardInterval = %v, want 30s", cfg.Payment.Service.SAFForwardInterval)
	}
	if len(cfg.Security.Terminals) != 1 || cfg.Security.Terminals[0].Role != "server" {
		t.Errorf("Terminals = %+v", cfg.Security.Terminals)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"DATABASE_URL", "postgres.dsn"},
		{"SAF_FORWARD_INTERVAL", "payment.service.saf_forward_interval"},
		{"OUTBOX_MAX_ATTEMPTS", "outbox.backoff.max_attempts"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  role: satellite\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", testSecret)

	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() error = nil for an unknown role")
	}
}
