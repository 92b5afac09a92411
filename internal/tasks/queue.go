// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package tasks runs side effects (audit records, kitchen tickets) off the
// request path on a bounded queue. Submit never blocks: when the queue is
// full the task is dropped, logged and counted. Failed tasks are logged
// with their kind and counted; they are not retried.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// ErrQueueFull is returned by TrySubmit when the task was dropped.
var ErrQueueFull = errors.New("task queue full")

// ErrClosed is returned when submitting after shutdown began.
var ErrClosed = errors.New("task queue closed")

// Func is the body of a task.
type Func func(ctx context.Context) error

// Config controls queue sizing.
type Config struct {
	Workers     int           `koanf:"workers" validate:"min=1,max=64"`
	QueueSize   int           `koanf:"queue_size" validate:"min=1"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   1000,
		TaskTimeout: 10 * time.Second,
	}
}

type task struct {
	kind string
	fn   Func
}

// Queue is a bounded pool of side-effect workers.
type Queue struct {
	cfg   Config
	tasks chan task

	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// New creates a queue. Call Serve (directly or under a supervisor) to
// start the workers.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Queue{
		cfg:   cfg,
		tasks: make(chan task, cfg.QueueSize),
	}
}

// Submit enqueues fn without blocking and reports whether it was accepted.
func (q *Queue) Submit(kind string, fn Func) bool {
	return q.TrySubmit(kind, fn) == nil
}

// TrySubmit is Submit with the reason for a rejection.
func (q *Queue) TrySubmit(kind string, fn Func) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordTask(kind, "dropped")
		logging.Warn().Str("kind", kind).Msg("Task submitted after shutdown, dropping")
		return ErrClosed
	}

	select {
	case q.tasks <- task{kind: kind, fn: fn}:
		metrics.TaskQueueDepth.Set(float64(len(q.tasks)))
		return nil
	default:
		metrics.RecordTask(kind, "dropped")
		logging.Warn().Str("kind", kind).Int("queue_size", q.cfg.QueueSize).Msg("Task queue full, dropping task")
		return ErrQueueFull
	}
}

// Depth returns the number of queued tasks.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

// Serve runs the workers until ctx is cancelled, then drains what is
// already queued and returns. Implements suture.Service.
func (q *Queue) Serve(ctx context.Context) error {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	<-ctx.Done()
	q.wg.Wait()
	q.drain()
	return ctx.Err()
}

// Close stops accepting new tasks. Tasks already queued are still run by
// Serve's drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// String implements fmt.Stringer for supervisor logs.
func (q *Queue) String() string {
	return "task-queue"
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.run(t)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.run(t)
		default:
			return
		}
	}
}

func (q *Queue) run(t task) {
	metrics.TaskQueueDepth.Set(float64(len(q.tasks)))

	// Tasks outlive the request that submitted them.
	ctx := context.Background()
	if q.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
	}

	err := safeRun(ctx, t.fn)
	if err != nil {
		metrics.RecordTask(t.kind, "failed")
		logging.Error().Err(err).Str("kind", t.kind).Msg("Side-effect task failed")
		return
	}
	metrics.RecordTask(t.kind, "ok")
}

func safeRun(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
