// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
)

func TestHTTPClientErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   `{"status":"error","error":{"code":"VERSION_CONFLICT","message":"stale","details":{"current_version":7}}}`,
			check: func(t *testing.T, err error) {
				c, ok := apperr.IsConflict(err)
				if !ok || c.CurrentVersion != 7 {
					t.Errorf("err = %v, want conflict at 7", err)
				}
			},
		},
		{
			name:   "validation",
			status: http.StatusUnprocessableEntity,
			body:   `{"status":"error","error":{"code":"VALIDATION_ERROR","message":"quantity must be at least 1"}}`,
			check: func(t *testing.T, err error) {
				if apperr.Classify(err) != apperr.ClassValidation {
					t.Errorf("err = %v, want validation", err)
				}
			},
		},
		{
			name:   "busy with retry-after",
			status: http.StatusServiceUnavailable,
			header: map[string]string{"Retry-After": "3"},
			body:   `{"status":"error","error":{"code":"BUSY","message":"order is busy"}}`,
			check: func(t *testing.T, err error) {
				var te *apperr.TransientError
				if !errors.As(err, &te) || te.RetryAfter != 3*time.Second {
					t.Errorf("err = %v, want transient with 3s retry-after", err)
				}
			},
		},
		{
			name:   "fatal",
			status: http.StatusInternalServerError,
			body:   `{"status":"error","error":{"code":"FATAL_IRRECONCILABLE","message":"operator needed"}}`,
			check: func(t *testing.T, err error) {
				if apperr.Classify(err) != apperr.ClassFatal {
					t.Errorf("err = %v, want fatal", err)
				}
			},
		},
		{
			name:   "gateway html",
			status: http.StatusBadGateway,
			body:   "<html>bad gateway</html>",
			check: func(t *testing.T, err error) {
				if !apperr.IsRetryable(err) {
					t.Errorf("err = %v, want retryable", err)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"status":"error","error":{"code":"NOT_FOUND","message":"order not found"}}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, apperr.ErrNotFound) {
					t.Errorf("err = %v, want ErrNotFound", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, StaticToken("tok"), time.Second)
			_, err := c.FetchOrder(context.Background(), "A")
			if err == nil {
				t.Fatal("FetchOrder() error = nil")
			}
			tt.check(t, err)
		})
	}
}

func TestHTTPClientDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/delta" || r.URL.Query().Get("since") != "12" {
			t.Errorf("request = %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"venue_id":"v1","orders":[{"id":"A","version":3}],"removed":["B"],"cursor":15}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, time.Second)
	d, err := c.Delta(context.Background(), 12)
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if d.Cursor != 15 || len(d.Orders) != 1 || d.Orders[0].Version != 3 || len(d.Removed) != 1 {
		t.Errorf("Delta() = %+v", d)
	}
}

func TestHTTPClientUnreachableIsTransient(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", nil, 200*time.Millisecond)
	_, err := c.Bootstrap(context.Background())
	if !apperr.IsRetryable(err) {
		t.Errorf("Bootstrap() error = %v, want retryable", err)
	}
}
