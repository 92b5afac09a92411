// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/metrics"
)

// RowLocks is an in-process lock table with one lock per order ID. The
// table mutex is held only to find or create an entry, never while waiting.
type RowLocks struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

type rowLock struct {
	ch   chan struct{}
	refs int
}

// NewRowLocks creates an empty lock table.
func NewRowLocks() *RowLocks {
	return &RowLocks{locks: make(map[string]*rowLock)}
}

// Acquire locks id, waiting at most wait. It returns apperr.ErrBusy on
// timeout and the context error on cancellation.
func (l *RowLocks) Acquire(ctx context.Context, id string, wait time.Duration) (release func(), err error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &rowLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	start := time.Now()
	defer func() { metrics.LedgerLockWait.Observe(time.Since(start).Seconds()) }()

	// Uncontended fast path.
	select {
	case lk.ch <- struct{}{}:
		return l.releaser(id, lk), nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case lk.ch <- struct{}{}:
		return l.releaser(id, lk), nil
	case <-timer.C:
		l.unref(id, lk)
		return nil, apperr.ErrBusy
	case <-ctx.Done():
		l.unref(id, lk)
		return nil, ctx.Err()
	}
}

func (l *RowLocks) releaser(id string, lk *rowLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.unref(id, lk)
		})
	}
}

func (l *RowLocks) unref(id string, lk *rowLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

// Len returns the number of orders with a held or awaited lock.
func (l *RowLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
