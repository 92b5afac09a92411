// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 10, Base: time.Second, Cap: 30 * time.Second, Multiplier: 2})

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 5, Base: time.Second, Cap: 30 * time.Second, JitterFraction: 0.5, RandomSeed: 42})

	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			if d < 0 || d > 30*time.Second {
				t.Fatalf("Delay(%d) = %v out of bounds", attempt, d)
			}
		}
	}

	first := p.Delay(1)
	if first < 500*time.Millisecond || first > 1500*time.Millisecond {
		t.Errorf("Delay(1) with 50%% jitter = %v, want within [0.5s,1.5s]", first)
	}
}

func TestDelayJitterSpreadsValues(t *testing.T) {
	t.Parallel()

	p := New(Config{Base: time.Second, Cap: 30 * time.Second, JitterFraction: 0.2, RandomSeed: 7})
	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		seen[p.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Error("expected jitter to produce distinct delays")
	}
}

func TestExhausted(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 3})
	if p.Exhausted(2) {
		t.Error("2 attempts should not exhaust a limit of 3")
	}
	if !p.Exhausted(3) {
		t.Error("3 attempts should exhaust a limit of 3")
	}
}

var errTemporary = errors.New("temporary")

func TestRetry(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 4, Base: time.Millisecond, Cap: 2 * time.Millisecond})
	retryable := func(err error) bool { return errors.Is(err, errTemporary) }

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := p.Retry(context.Background(), retryable, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTemporary
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		permanent := errors.New("declined")
		calls := 0
		err := p.Retry(context.Background(), retryable, func(context.Context) error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) || calls != 1 {
			t.Errorf("err = %v calls = %d, want permanent after 1 call", err, calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := p.Retry(context.Background(), retryable, func(context.Context) error {
			calls++
			return errTemporary
		})
		if !errors.Is(err, ErrAttemptsExhausted) || !errors.Is(err, errTemporary) {
			t.Errorf("err = %v, want exhausted wrapping temporary", err)
		}
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
	})

	t.Run("honours context", func(t *testing.T) {
		slow := New(Config{MaxAttempts: 5, Base: time.Hour, Cap: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := slow.Retry(ctx, retryable, func(context.Context) error { return errTemporary })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
