// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package authz

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
)

// Actions are "<object>:<verb>" pairs matched against policy.csv.
const (
	ActionOrderRead        = "order:read"
	ActionOrderWrite       = "order:write"
	ActionOrderReopen      = "order:reopen"
	ActionPaymentAuthorize = "payment:authorize"
	ActionPaymentCapture   = "payment:capture"
	ActionPaymentVoid      = "payment:void"
	ActionPaymentReconcile = "payment:reconcile"
	ActionSAFRead          = "saf:read"
	ActionSAFForward       = "saf:forward"
	ActionBatchClose       = "saf:close"
	ActionSyncRead         = "sync:read"
	ActionOutboxWrite      = "outbox:write"
	ActionOutboxAdmin      = "outbox:admin"
	ActionAuditRead        = "audit:read"
	ActionFleetCommand     = "fleet:command"
	ActionEventsSubscribe  = "events:subscribe"
	ActionBackupRead       = "backup:read"
	ActionBackupWrite      = "backup:write"
)

// DeniedSink records refused actions. *audit.Logger satisfies it.
type DeniedSink interface {
	LogAuthzDenied(ctx context.Context, actor models.Actor, resource, action string)
}

// Authorizer checks actor roles against the policy. It satisfies the
// ledger's Authorizer interface.
type Authorizer struct {
	enforcer *Enforcer
	audit    DeniedSink
}

// NewAuthorizer creates an Authorizer. audit may be nil.
func NewAuthorizer(enforcer *Enforcer, audit DeniedSink) *Authorizer {
	return &Authorizer{enforcer: enforcer, audit: audit}
}

// Authorize returns an error wrapping apperr.ErrForbidden when the actor's
// role may not perform action.
func (a *Authorizer) Authorize(ctx context.Context, actor models.Actor, action string) error {
	object, verb, ok := strings.Cut(action, ":")
	if !ok {
		return fmt.Errorf("malformed action %q: %w", action, apperr.ErrForbidden)
	}

	allowed, err := a.enforcer.Enforce(actor.Role, object, verb)
	if err != nil {
		return apperr.Transient("authorize", err)
	}
	if !allowed {
		if a.audit != nil {
			a.audit.LogAuthzDenied(ctx, actor, object, verb)
		}
		return fmt.Errorf("role %q may not %s: %w", actor.Role, action, apperr.ErrForbidden)
	}
	return nil
}

// Require is chi middleware that allows the request only when the
// authenticated actor may perform action. It must run after
// auth.Middleware.Authenticate.
func (a *Authorizer) Require(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.ActorFromContext(r.Context())
			if !ok {
				writeForbidden(w, "no authentication context")
				return
			}
			if err := a.Authorize(r.Context(), actor, action); err != nil {
				logging.Debug().
					Str("role", actor.Role).
					Str("action", action).
					Str("path", r.URL.Path).
					Msg("Request denied by policy")
				writeForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: models.CodeForbidden, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode forbidden response")
	}
}
