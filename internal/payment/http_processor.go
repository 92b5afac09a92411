// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

// HTTPProcessor talks JSON to a processor gateway:
//
//	POST /v1/authorizations                    AuthorizeRequest -> AuthorizeResponse
//	POST /v1/authorizations/{ref}/capture      {"amount": n}
//	POST /v1/authorizations/{ref}/void
//	GET  /v1/authorizations/{ref}              -> ProcessorStatus
type HTTPProcessor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProcessor creates a processor client.
func NewHTTPProcessor(baseURL, apiKey string, timeout time.Duration) *HTTPProcessor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProcessor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Authorize implements Processor.
func (p *HTTPProcessor) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error) {
	var out AuthorizeResponse
	err := p.do(ctx, http.MethodPost, "/v1/authorizations", req.IdempotencyKey, req, &out)
	return out, err
}

// Capture implements Processor.
func (p *HTTPProcessor) Capture(ctx context.Context, reference string, amount models.Money) error {
	body := map[string]models.Money{"amount": amount}
	return p.do(ctx, http.MethodPost, "/v1/authorizations/"+url.PathEscape(reference)+"/capture", "capture-"+reference, body, nil)
}

// Void implements Processor.
func (p *HTTPProcessor) Void(ctx context.Context, reference string) error {
	return p.do(ctx, http.MethodPost, "/v1/authorizations/"+url.PathEscape(reference)+"/void", "void-"+reference, nil, nil)
}

// Query implements Processor.
func (p *HTTPProcessor) Query(ctx context.Context, reference string) (ProcessorStatus, error) {
	var out ProcessorStatus
	err := p.do(ctx, http.MethodGet, "/v1/authorizations/"+url.PathEscape(reference), "", nil, &out)
	return out, err
}

func (p *HTTPProcessor) do(ctx context.Context, method, path, idemKey string, body, out any) error {
	op := "processor " + method + " " + path

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperr.Transient(op, fmt.Errorf("%w: %v", apperr.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Transient(op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperr.Transient(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data)))
	case resp.StatusCode >= 400:
		var perr struct {
			Message string `json:"message"`
		}
		msg := truncate(data)
		if json.Unmarshal(data, &perr) == nil && perr.Message != "" {
			msg = perr.Message
		}
		return apperr.Validation("payment", "processor refused the request: "+msg)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Transient(op, errors.New("malformed processor response"))
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
