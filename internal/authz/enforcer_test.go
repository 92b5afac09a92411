// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package authz

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/ledger"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(EnforcerConfig{CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEnforcer_EmbeddedPolicy(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		role, object, action string
		want                 bool
	}{
		{"server", "order", "write", true},
		{"server", "payment", "authorize", true},
		{"server", "order", "reopen", false},
		{"server", "payment", "void", false},
		{"kitchen", "order", "read", true},
		{"kitchen", "order", "write", false},
		{"manager", "order", "write", true}, // inherited from server
		{"manager", "order", "reopen", true},
		{"manager", "fleet", "command", false},
		{"admin", "fleet", "command", true},
		{"admin", "order", "reopen", true},
		{"edge", "outbox", "write", true},
		{"edge", "order", "reopen", true},
		{"edge", "payment", "authorize", false},
		{"", "order", "read", false},
		{"unknown", "order", "read", false},
	}
	for _, tt := range tests {
		// Twice: the second answer comes from the cache.
		for i := 0; i < 2; i++ {
			got, err := e.Enforce(tt.role, tt.object, tt.action)
			if err != nil {
				t.Fatalf("Enforce(%s, %s, %s) error = %v", tt.role, tt.object, tt.action, err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
			}
		}
	}
}

func TestEnforcer_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(path, []byte("p, kitchen, order, write\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewEnforcer(EnforcerConfig{PolicyPath: path})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	defer e.Close()

	if ok, _ := e.Enforce("kitchen", "order", "write"); !ok {
		t.Error("file policy should allow kitchen order write")
	}
	if ok, _ := e.Enforce("server", "order", "write"); ok {
		t.Error("file policy replaces the embedded one")
	}
}

func TestEnforcer_Roles(t *testing.T) {
	roles := newTestEnforcer(t).Roles()
	want := map[string]bool{"server": true, "kitchen": true, "manager": true, "edge": true, "admin": true}
	if len(roles) != len(want) {
		t.Fatalf("Roles() = %v", roles)
	}
	for _, r := range roles {
		if !want[r] {
			t.Errorf("unexpected role %q", r)
		}
	}
}

func TestActionReopenMatchesLedger(t *testing.T) {
	if ActionOrderReopen != ledger.ActionReopen {
		t.Errorf("ActionOrderReopen = %q, ledger checks %q", ActionOrderReopen, ledger.ActionReopen)
	}
}
