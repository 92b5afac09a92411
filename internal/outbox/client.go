// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

// Client is the upstream the engine submits to: the venue edge server for a
// terminal, or the cloud service for an edge relay.
type Client interface {
	Submit(ctx context.Context, batch models.OutboxBatch) (*models.OutboxResponse, error)
	FetchOrder(ctx context.Context, orderID string) (*models.Order, error)
	Bootstrap(ctx context.Context) (*models.Snapshot, error)
	Delta(ctx context.Context, since int64) (*models.Delta, error)
}

// TokenSource returns the bearer token for the next request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// HTTPClient talks to the /api/v1 endpoints of an upstream server.
type HTTPClient struct {
	baseURL string
	token   TokenSource
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL (e.g. "https://edge.local:8080").
func NewHTTPClient(baseURL string, token TokenSource, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit posts a batch of queued mutations.
func (c *HTTPClient) Submit(ctx context.Context, batch models.OutboxBatch) (*models.OutboxResponse, error) {
	var out models.OutboxResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/outbox", batch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOrder returns the authoritative order.
func (c *HTTPClient) FetchOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bootstrap returns the full snapshot of open orders.
func (c *HTTPClient) Bootstrap(ctx context.Context) (*models.Snapshot, error) {
	var out models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/bootstrap", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delta returns changes after since.
func (c *HTTPClient) Delta(ctx context.Context, since int64) (*models.Delta, error) {
	var out models.Delta
	path := "/api/v1/delta?since=" + strconv.FormatInt(since, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope mirrors models.APIResponse with a typed payload.
type envelope[T any] struct {
	Status string           `json:"status"`
	Data   T                `json:"data"`
	Error  *models.APIError `json:"error,omitempty"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return apperr.Transient(op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network failures are always worth retrying.
		return apperr.Transient(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return apperr.Transient(op, err)
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 500 {
			return apperr.Transient(op, fmt.Errorf("status %d", resp.StatusCode))
		}
		return fmt.Errorf("decode %s: %w", op, err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		return statusError(op, resp, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

// statusError maps an upstream error response back onto the apperr taxonomy.
func statusError(op string, resp *http.Response, body *models.APIError) error {
	msg := http.StatusText(resp.StatusCode)
	code := ""
	if body != nil {
		msg = body.Message
		code = body.Code
	}

	switch {
	case resp.StatusCode == http.StatusConflict && code == models.CodeConflict:
		var current int64
		if body != nil {
			if v, ok := body.Details["current_version"].(float64); ok {
				current = int64(v)
			}
		}
		return &apperr.ConflictError{CurrentVersion: current}
	case resp.StatusCode == http.StatusUnprocessableEntity, resp.StatusCode == http.StatusBadRequest:
		return apperr.Validation("", msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %s: %w", op, msg, apperr.ErrForbidden)
	case code == models.CodeFatal:
		return apperr.Fatal(op, errors.New(msg), nil)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return &apperr.TransientError{Op: op, Err: errors.New(msg), RetryAfter: retryAfter(resp)}
	default:
		return apperr.Validation("", fmt.Sprintf("%s: unexpected status %d: %s", op, resp.StatusCode, msg))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
