// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/outbox"
	"github.com/tomtom215/tabline/internal/payment"
	ws "github.com/tomtom215/tabline/internal/websocket"
)

// CommandPublisher publishes fleet commands. *eventbus.Bus satisfies it.
type CommandPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}, meta map[string]string) error
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files by resource:
//   - handlers_health.go: probes
//   - handlers_auth.go: terminal login
//   - handlers_orders.go: order reads and writes
//   - handlers_sync.go: bootstrap, delta and outbox intake
//   - handlers_payments.go: payment state machine and SAF
//   - handlers_admin.go: edge outbox admin, audit and fleet commands
//   - handlers_backup.go: local store snapshots
//   - handlers_websocket.go: notification stream
type Handler struct {
	config    *config.Config
	ledger    *ledger.Ledger
	payments  *payment.Service
	wsHub     *ws.Hub
	terminals *auth.TerminalRegistry
	audit     *audit.Logger
	outbox    *outbox.Engine   // Edge only
	backups   *backup.Manager  // Nil when backups are disabled
	commands  CommandPublisher // Nil when no event bus is configured
	startTime time.Time

	mu     sync.RWMutex
	checks map[string]ReadinessCheck
}

// NewHandler creates the API handler. Optional dependencies are attached
// with the Set methods before the router is built.
func NewHandler(cfg *config.Config, l *ledger.Ledger, payments *payment.Service, hub *ws.Hub) *Handler {
	return &Handler{
		config:    cfg,
		ledger:    l,
		payments:  payments,
		wsHub:     hub,
		startTime: time.Now(),
		checks:    make(map[string]ReadinessCheck),
	}
}

// SetTerminalRegistry enables terminal login.
func (h *Handler) SetTerminalRegistry(r *auth.TerminalRegistry) { h.terminals = r }

// SetAuditLogger enables the audit endpoint and admin action auditing.
func (h *Handler) SetAuditLogger(l *audit.Logger) { h.audit = l }

// SetOutboxEngine enables the edge outbox admin endpoints.
func (h *Handler) SetOutboxEngine(e *outbox.Engine) { h.outbox = e }

// SetBackupManager enables the storage snapshot endpoints.
func (h *Handler) SetBackupManager(m *backup.Manager) { h.backups = m }

// SetCommandPublisher enables fleet commands.
func (h *Handler) SetCommandPublisher(p CommandPublisher) { h.commands = p }

// AddReadinessCheck registers a dependency probed by /health/ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *Handler) readinessChecks() map[string]ReadinessCheck {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]ReadinessCheck, len(h.checks))
	for k, v := range h.checks {
		out[k] = v
	}
	return out
}

// actorFrom returns the authenticated actor. Routes are always mounted
// behind auth.Middleware, so a missing actor is a wiring bug.
func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required", nil)
		return models.Actor{}, false
	}
	return actor, true
}
