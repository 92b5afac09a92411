// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// Auth modes.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

// Middleware authenticates API and websocket requests.
type Middleware struct {
	jwtManager *JWTManager
	authMode   string

	// Identity used when auth is disabled.
	anonymous *Claims
}

// NewMiddleware creates the authentication middleware. With auth mode "none"
// every request runs as an admin of defaultVenue; this is for local
// development only and is refused by config validation in production.
func NewMiddleware(jwtManager *JWTManager, authMode, defaultVenue string) *Middleware {
	if defaultVenue == "" {
		defaultVenue = "dev"
	}
	return &Middleware{
		jwtManager: jwtManager,
		authMode:   authMode,
		anonymous: &Claims{
			VenueID:    defaultVenue,
			TerminalID: "anonymous",
			Role:       "admin",
		},
	}
}

// Authenticate is chi middleware that rejects requests without a valid token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == ModeNone {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), m.anonymous)))
			return
		}

		token, ok := extractToken(r)
		if !ok {
			metrics.RecordAuthAttempt("token", "denied")
			writeUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			metrics.RecordAuthAttempt("token", "denied")
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Token validation failed")
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		metrics.RecordAuthAttempt("token", "ok")
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// extractToken reads the Authorization header, falling back to the token
// query parameter because browsers cannot set headers on websocket upgrades.
func extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext returns the claims set by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// ActorFromContext returns the authenticated actor, or the zero Actor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tabline"`)
	w.WriteHeader(http.StatusUnauthorized)
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    models.CodeUnauthorized,
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode unauthorized response")
	}
}
