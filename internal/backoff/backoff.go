// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package backoff provides the single retry policy shared by the outbox
// engine and the payment processor adapter.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrAttemptsExhausted is returned by Retry when every attempt failed with a
// retryable error.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Config configures a Policy.
type Config struct {
	// MaxAttempts is the number of attempts before giving up (including the first).
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`

	// Base is the delay before the second attempt.
	Base time.Duration `koanf:"base" validate:"gt=0"`

	// Cap bounds the exponential growth.
	Cap time.Duration `koanf:"cap" validate:"gtefield=Base"`

	// Multiplier is the exponential growth factor (default: 2.0).
	Multiplier float64 `koanf:"multiplier"`

	// JitterFraction spreads each delay by up to +/- this fraction (0.0-1.0).
	JitterFraction float64 `koanf:"jitter_fraction" validate:"min=0,max=1"`

	// RandomSeed makes jitter reproducible in tests. Zero uses a time seed.
	RandomSeed int64 `koanf:"-"`
}

// DefaultConfig returns 1s base, 30s cap, 20% jitter, 10 attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    10,
		Base:           time.Second,
		Cap:            30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Policy computes retry delays. A Policy is safe for concurrent use.
type Policy struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Policy, filling zero fields from DefaultConfig.
func New(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Base <= 0 {
		cfg.Base = def.Base
	}
	if cfg.Cap < cfg.Base {
		cfg.Cap = cfg.Base
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction > 1 {
		cfg.JitterFraction = def.JitterFraction
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Policy{
		cfg: cfg,
		//nolint:gosec // G404: non-cryptographic jitter
		rng: rand.New(rand.NewSource(seed)),
	}
}

// MaxAttempts returns the configured attempt limit.
func (p *Policy) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Exhausted reports whether attempts has reached the limit.
func (p *Policy) Exhausted(attempts int) bool {
	return attempts >= p.cfg.MaxAttempts
}

// Delay returns the wait before the next attempt after `attempts` failures.
// Delay(1) is roughly Base; growth is capped at Cap before jitter is applied,
// and the jittered result never exceeds Cap.
func (p *Policy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	d := float64(p.cfg.Base) * math.Pow(p.cfg.Multiplier, float64(attempts-1))
	if d > float64(p.cfg.Cap) || math.IsInf(d, 0) {
		d = float64(p.cfg.Cap)
	}

	if p.cfg.JitterFraction > 0 {
		p.mu.Lock()
		j := d * p.cfg.JitterFraction * (p.rng.Float64()*2 - 1)
		p.mu.Unlock()
		d += j
	}

	if d > float64(p.cfg.Cap) {
		d = float64(p.cfg.Cap)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempt limit is reached, or ctx is done. retryable decides which errors
// are worth another attempt.
func (p *Policy) Retry(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return errors.Join(ErrAttemptsExhausted, lastErr)
}

// WithMaxAttempts returns a copy of the policy with a different attempt limit
// and the same delay curve. Used where a caller wants fewer inline retries
// than the background loop.
func (p *Policy) WithMaxAttempts(n int) *Policy {
	cfg := p.cfg
	cfg.MaxAttempts = n
	return New(cfg)
}
