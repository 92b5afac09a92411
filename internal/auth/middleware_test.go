// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func claimsEcho(t *testing.T, got **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from context")
		}
		*got = c
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_Authenticate(t *testing.T) {
	jwtManager := newTestJWT(t)
	token, _, err := jwtManager.GenerateToken(testActor)
	if err != nil {
		t.Fatal(err)
	}
	m := NewMiddleware(jwtManager, ModeJWT, "")

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, "", http.StatusNoContent},
		{"query token", "", "?token=" + token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"basic scheme", "Basic Zm9vOmJhcg==", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			m.Authenticate(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && (got == nil || got.TerminalID != "bar-1") {
				t.Errorf("claims = %+v", got)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestMiddleware_NoneMode(t *testing.T) {
	m := NewMiddleware(nil, ModeNone, "harbour")
	var got *Claims
	rec := httptest.NewRecorder()
	m.Authenticate(claimsEcho(t, &got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	actor := got.Actor()
	if actor.VenueID != "harbour" || actor.Role != "admin" {
		t.Errorf("actor = %+v", actor)
	}
}
