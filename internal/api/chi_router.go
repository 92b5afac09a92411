// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/authz"
	"github.com/tomtom215/tabline/internal/middleware"
	"github.com/tomtom215/tabline/internal/models"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	authz         *authz.Authorizer
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. chiMW may be nil for defaults.
func NewRouter(handler *Handler, authMW *auth.Middleware, authorizer *authz.Authorizer, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		auth:          authMW,
		authz:         authorizer,
		chiMiddleware: chiMW,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler
	can := router.authz.Require

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // Global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "no such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, models.CodeBadRequest, "method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/terminal", h.TerminalLogin)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.auth.Authenticate)

		// Sync
		r.With(can(authz.ActionSyncRead), middleware.Compression).Get("/bootstrap", h.Bootstrap)
		r.With(can(authz.ActionSyncRead)).Get("/delta", h.Delta)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitOutbox), can(authz.ActionOutboxWrite)).Post("/outbox", h.SubmitOutbox)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			// Orders
			r.With(can(authz.ActionOrderRead), middleware.Compression).Get("/orders", h.ListOrders)
			r.With(can(authz.ActionOrderWrite)).Post("/orders", h.CreateOrder)
			r.Route("/orders/{id}", func(r chi.Router) {
				r.With(can(authz.ActionOrderRead)).Get("/", h.GetOrder)
				r.With(can(authz.ActionOrderWrite)).Post("/mutations", h.ApplyMutation)
				r.With(can(authz.ActionOrderReopen)).Post("/reopen", h.ReopenOrder)
				r.With(can(authz.ActionOrderRead)).Get("/payments", h.OrderPayments)
			})

			// Payments
			r.With(can(authz.ActionPaymentAuthorize)).Post("/payments/authorize", h.AuthorizePayment)
			r.Route("/payments/{ref}", func(r chi.Router) {
				r.With(can(authz.ActionOrderRead)).Get("/", h.GetPayment)
				r.With(can(authz.ActionPaymentCapture)).Post("/capture", h.CapturePayment)
				r.With(can(authz.ActionPaymentVoid)).Post("/void", h.VoidPayment)
				r.With(can(authz.ActionPaymentReconcile)).Post("/reconcile", h.ReconcilePayment)
			})
		})

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAdmin))

			r.With(can(authz.ActionSAFRead)).Get("/saf", h.SAFStatus)
			r.With(can(authz.ActionSAFForward)).Post("/saf/forward", h.SAFForward)
			r.With(can(authz.ActionBatchClose)).Post("/saf/close", h.CloseBatch)

			r.With(can(authz.ActionOutboxAdmin)).Get("/outbox/status", h.OutboxStatus)
			r.With(can(authz.ActionOutboxAdmin)).Get("/outbox/dead-letters", h.DeadLetters)
			r.With(can(authz.ActionOutboxAdmin)).Post("/outbox/dead-letters/{id}/requeue", h.RequeueDeadLetter)

			r.With(can(authz.ActionAuditRead)).Get("/audit", h.AuditEvents)

			r.With(can(authz.ActionBackupRead)).Get("/admin/backups", h.ListBackups)
			r.With(can(authz.ActionBackupWrite)).Post("/admin/backups", h.CreateBackup)
			r.With(can(authz.ActionBackupRead)).Post("/admin/backups/{id}/validate", h.ValidateBackup)
			r.With(can(authz.ActionFleetCommand)).Post("/admin/fleet/commands", h.FleetCommand)
		})
	})

	// Browsers cannot set headers on the upgrade, so the token may arrive
	// as ?token=.
	r.With(router.auth.Authenticate, can(authz.ActionEventsSubscribe)).Get("/ws", h.WebSocket)

	return r
}
