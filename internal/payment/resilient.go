// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

// ErrCircuitOpen is wrapped into the transient error returned while the
// breaker rejects calls.
var ErrCircuitOpen = errors.New("payment processor circuit open")

// BreakerConfig tunes the processor circuit breaker.
type BreakerConfig struct {
	Name           string        `koanf:"name"`
	MaxRequests    uint32        `koanf:"max_requests"`    // Probes allowed while half-open
	Interval       time.Duration `koanf:"interval"`        // Count reset period while closed
	Timeout        time.Duration `koanf:"timeout"`         // Open period before probing
	MinRequests    uint32        `koanf:"min_requests"`
	FailureRatio   float64       `koanf:"failure_ratio"`
	InlineAttempts int           `koanf:"inline_attempts"` // Retries inside one call
}

// DefaultBreakerConfig opens after 60% failures over at least 5 requests
// and probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:           "payment-processor",
		MaxRequests:    1,
		Interval:       time.Minute,
		Timeout:        30 * time.Second,
		MinRequests:    5,
		FailureRatio:   0.6,
		InlineAttempts: 3,
	}
}

// ResilientProcessor wraps a Processor with a circuit breaker and the shared
// retry policy. Only transient failures count against the breaker.
type ResilientProcessor struct {
	next   Processor
	cb     *gobreaker.CircuitBreaker[any]
	policy *backoff.Policy
	name   string
}

// NewResilientProcessor wraps next. policy is the same object the outbox
// uses; its attempt limit is narrowed to cfg.InlineAttempts here.
func NewResilientProcessor(next Processor, policy *backoff.Policy, cfg BreakerConfig) *ResilientProcessor {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.InlineAttempts <= 0 {
		cfg.InlineAttempts = def.InlineAttempts
	}
	name := cfg.Name

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Declines and validation errors are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.IsRetryable(err)
		},
	})

	return &ResilientProcessor{
		next:   next,
		cb:     cb,
		policy: policy.WithMaxAttempts(cfg.InlineAttempts),
		name:   name,
	}
}

// Available reports whether the breaker currently lets requests through.
func (p *ResilientProcessor) Available() bool {
	return p.cb.State() != gobreaker.StateOpen
}

// State returns the breaker state.
func (p *ResilientProcessor) State() gobreaker.State {
	return p.cb.State()
}

func (p *ResilientProcessor) execute(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	var out any
	retryable := func(err error) bool {
		return apperr.IsRetryable(err) && !errors.Is(err, ErrCircuitOpen)
	}
	err := p.policy.Retry(ctx, retryable, func(ctx context.Context) error {
		res, err := p.cb.Execute(func() (any, error) {
			return fn(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
			return &apperr.TransientError{Op: op, Err: fmt.Errorf("%w: %w", apperr.ErrUnavailable, ErrCircuitOpen)}
		}
		if err != nil {
			metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
			return err
		}
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()
		out = res
		return nil
	})
	if err != nil && apperr.IsRetryable(err) {
		var te *apperr.TransientError
		if !errors.As(err, &te) {
			err = apperr.Transient(op, err)
		}
	}
	return out, err
}

// Authorize implements Processor.
func (p *ResilientProcessor) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error) {
	res, err := p.execute(ctx, "authorize", func(ctx context.Context) (any, error) {
		return p.next.Authorize(ctx, req)
	})
	if err != nil {
		return AuthorizeResponse{}, err
	}
	return res.(AuthorizeResponse), nil
}

// Capture implements Processor.
func (p *ResilientProcessor) Capture(ctx context.Context, reference string, amount models.Money) error {
	_, err := p.execute(ctx, "capture", func(ctx context.Context) (any, error) {
		return nil, p.next.Capture(ctx, reference, amount)
	})
	return err
}

// Void implements Processor.
func (p *ResilientProcessor) Void(ctx context.Context, reference string) error {
	_, err := p.execute(ctx, "void", func(ctx context.Context) (any, error) {
		return nil, p.next.Void(ctx, reference)
	})
	return err
}

// Query implements Processor.
func (p *ResilientProcessor) Query(ctx context.Context, reference string) (ProcessorStatus, error) {
	res, err := p.execute(ctx, "query", func(ctx context.Context) (any, error) {
		return p.next.Query(ctx, reference)
	})
	if err != nil {
		return ProcessorStatus{}, err
	}
	return res.(ProcessorStatus), nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
