// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/payment"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(time.Second)
	var runs atomic.Int32
	s.Add(Job{Name: "count", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	s.Add(Job{Name: "disabled", Run: func(context.Context) error {
		t.Error("disabled job ran")
		return nil
	}})

	if got := s.Jobs(); len(got) != 1 || got[0] != "count" {
		t.Fatalf("Jobs() = %v, want [count]", got)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "two runs", func() bool { return runs.Load() >= 2 })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := s.RunNow("count"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow() after Stop error = %v, want ErrUnknownJob", err)
	}
}

func TestSchedulerRecordsOutcomes(t *testing.T) {
	failed := metrics.SchedulerJobRuns.WithLabelValues("flaky", "failed")
	skipped := metrics.SchedulerJobRuns.WithLabelValues("gated", "skipped")
	failedBefore, skippedBefore := testutil.ToFloat64(failed), testutil.ToFloat64(skipped)

	s := New(time.Second)
	s.Add(Job{Name: "flaky", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("store unavailable")
	}})
	var gatedRuns atomic.Int32
	s.Add(Job{Name: "gated", Interval: time.Hour, When: func() bool { return false }, Run: func(context.Context) error {
		gatedRuns.Add(1)
		return nil
	}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	waitFor(t, "first runs", func() bool {
		return testutil.ToFloat64(failed) > failedBefore && testutil.ToFloat64(skipped) > skippedBefore
	})
	if gatedRuns.Load() != 0 {
		t.Error("gated job ran while its condition was false")
	}
}

func TestRunNow(t *testing.T) {
	s := New(time.Second)
	var runs atomic.Int32
	s.Add(Job{Name: "manual", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	waitFor(t, "immediate run", func() bool { return runs.Load() == 1 })
	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	waitFor(t, "manual run", func() bool { return runs.Load() == 2 })

	if err := s.RunNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) error = %v", err)
	}
}

type fakeForwarder struct {
	depth     int
	available bool
	calls     int
}

func (f *fakeForwarder) Depth() int               { return f.depth }
func (f *fakeForwarder) ProcessorAvailable() bool { return f.available }
func (f *fakeForwarder) ForwardBatch(context.Context) (payment.ForwardResult, error) {
	f.calls++
	f.depth = 0
	return payment.ForwardResult{Captured: 1}, nil
}

func TestSAFForwardJobGate(t *testing.T) {
	tests := []struct {
		name      string
		depth     int
		available bool
		want      bool
	}{
		{"empty queue", 0, true, false},
		{"breaker open", 3, false, false},
		{"queued and reachable", 3, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeForwarder{depth: tt.depth, available: tt.available}
			job := SAFForwardJob(time.Minute, f)
			if got := job.When(); got != tt.want {
				t.Errorf("When() = %v, want %v", got, tt.want)
			}
		})
	}

	f := &fakeForwarder{depth: 1, available: true}
	if err := SAFForwardJob(time.Minute, f).Run(context.Background()); err != nil || f.calls != 1 {
		t.Errorf("Run() error = %v, calls = %d", err, f.calls)
	}
}

type countingGC struct{ runs int }

func (c *countingGC) RunGC() error { c.runs++; return nil }

type fixedCleaner struct{ n int }

func (c fixedCleaner) Cleanup() int { return c.n }

type backupFunc func(ctx context.Context) error

func (f backupFunc) Run(ctx context.Context) error { return f(ctx) }

func TestMaintenanceJobs(t *testing.T) {
	gc := &countingGC{}
	jobs := []Job{
		StorageGCJob(time.Hour, gc),
		LockoutCleanupJob(time.Hour, fixedCleaner{n: 2}),
		StorageBackupJob(time.Hour, backupFunc(func(context.Context) error { return nil })),
	}
	for _, job := range jobs {
		if err := job.Run(context.Background()); err != nil {
			t.Errorf("%s: Run() error = %v", job.Name, err)
		}
	}
	if gc.runs != 1 {
		t.Errorf("GC runs = %d, want 1", gc.runs)
	}
}
