// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/models"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  600,
		RateLimitWindow:    time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig defines rate limiting parameters for specific endpoint types.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Per-endpoint limits. Terminals are keyed by token subject, so a busy
// venue behind one NAT address does not share a bucket.
var (
	// RateLimitLogin limits terminal logins per IP.
	RateLimitLogin = RateLimitConfig{Requests: 10, Window: 5 * time.Minute}

	// RateLimitHealth is permissive for probes.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitOutbox allows an edge to flush a long backlog quickly.
	RateLimitOutbox = RateLimitConfig{Requests: 1200, Window: time.Minute}

	// RateLimitAdmin covers fleet commands and SAF operations.
	RateLimitAdmin = RateLimitConfig{Requests: 30, Window: time.Minute}
)

// RateLimit returns the general limiter keyed by terminal, falling back to IP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limit(RateLimitConfig{Requests: m.config.RateLimitRequests, Window: m.config.RateLimitWindow}, keyByTerminal)
}

// RateLimitCustom returns a per-terminal limiter with the given parameters.
func (m *ChiMiddleware) RateLimitCustom(config RateLimitConfig) func(http.Handler) http.Handler {
	return m.limit(config, keyByTerminal)
}

// RateLimitLogin limits login attempts per client IP.
func (m *ChiMiddleware) RateLimitLogin() func(http.Handler) http.Handler {
	return m.limit(RateLimitLogin, httprate.KeyByIP)
}

// RateLimitHealth limits probe traffic per client IP.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.limit(RateLimitHealth, httprate.KeyByIP)
}

func (m *ChiMiddleware) limit(config RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(config.Requests, config.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(config.Window/time.Second)))
			respondError(w, r, http.StatusTooManyRequests, models.CodeBusy, "rate limit exceeded", nil)
		}),
	)
}

// keyByTerminal keys authenticated requests by venue and terminal. It must
// run after authentication; unauthenticated requests fall back to IP.
func keyByTerminal(r *http.Request) (string, error) {
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		return "terminal:" + actor.VenueID + "/" + actor.TerminalID, nil
	}
	return httprate.KeyByIP(r)
}

// APISecurityHeaders adds security headers to API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
