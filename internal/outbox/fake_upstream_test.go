// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/wal"
)

// fakeUpstream is a minimal authoritative server: it version-checks each
// submission, remembers idempotency keys and can be scripted to fail.
type fakeUpstream struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	seen      map[string]int64 // idempotency key -> resulting version
	transient map[string]int   // idempotency key -> failures left
	reject    map[string]int   // idempotency key -> rejections left
	applied   []string         // idempotency keys in commit order
	submits   int
	cursor    int64
	removed   []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		orders:    make(map[string]*models.Order),
		seen:      make(map[string]int64),
		transient: make(map[string]int),
		reject:    make(map[string]int),
	}
}

func (f *fakeUpstream) put(id string, version int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id] = &models.Order{ID: id, VenueID: "v1", Status: models.StatusDraft, Version: version}
}

func (f *fakeUpstream) Submit(_ context.Context, batch models.OutboxBatch) (*models.OutboxResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := &models.OutboxResponse{}
	for _, sub := range batch.Entries {
		f.submits++
		res := models.SubmissionResult{EntryID: sub.EntryID}

		if n := f.transient[sub.IdempotencyKey]; n > 0 {
			f.transient[sub.IdempotencyKey] = n - 1
			return nil, apperr.Transient("submit", errors.New("upstream unavailable"))
		}
		if n := f.reject[sub.IdempotencyKey]; n > 0 {
			f.reject[sub.IdempotencyKey] = n - 1
			res.Status = models.SubmissionRejected
			res.Error = "item is not on the menu"
			resp.Results = append(resp.Results, res)
			continue
		}

		if v, ok := f.seen[sub.IdempotencyKey]; ok {
			o := f.orders[sub.OrderID].Clone()
			res.Status = models.SubmissionConfirmed
			res.Replayed = true
			res.Order = o
			res.CurrentVersion = v
			resp.Results = append(resp.Results, res)
			continue
		}

		o, ok := f.orders[sub.OrderID]
		if sub.Mutation.Kind == models.MutationCreate && !ok {
			o = &models.Order{ID: sub.OrderID, VenueID: "v1", Status: models.StatusDraft}
			f.orders[sub.OrderID] = o
		}
		if o == nil {
			res.Status = models.SubmissionRejected
			res.Error = "order not found"
			resp.Results = append(resp.Results, res)
			continue
		}
		if sub.ExpectedVersion != o.Version {
			res.Status = models.SubmissionConflict
			res.CurrentVersion = o.Version
			resp.Results = append(resp.Results, res)
			continue
		}

		o.Version++
		f.cursor++
		f.seen[sub.IdempotencyKey] = o.Version
		f.applied = append(f.applied, sub.IdempotencyKey)
		res.Status = models.SubmissionConfirmed
		res.Order = o.Clone()
		res.CurrentVersion = o.Version
		resp.Results = append(resp.Results, res)
	}
	return resp, nil
}

func (f *fakeUpstream) FetchOrder(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o.Clone(), nil
}

func (f *fakeUpstream) Bootstrap(_ context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := &models.Snapshot{VenueID: "v1", Cursor: f.cursor, TakenAt: time.Now()}
	for _, o := range f.orders {
		snap.Orders = append(snap.Orders, *o.Clone())
	}
	return snap, nil
}

func (f *fakeUpstream) Delta(_ context.Context, since int64) (*models.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &models.Delta{VenueID: "v1", Cursor: f.cursor, Removed: f.removed}
	for _, o := range f.orders {
		d.Orders = append(d.Orders, *o.Clone())
	}
	return d, nil
}

func (f *fakeUpstream) appliedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

// testEngine wires an engine to an in-memory badger store and a clock the
// test advances by hand.
type testEngine struct {
	*Engine
	clock time.Time
}

func newTestEngine(t *testing.T, up Client, maxAttempts int) *testEngine {
	t.Helper()
	db, err := wal.Open(wal.TestConfig())
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	policy := backoff.New(backoff.Config{
		MaxAttempts: maxAttempts,
		Base:        time.Second,
		Cap:         time.Second,
		RandomSeed:  1,
	})
	store := NewStore(db, "t1", time.Hour)
	te := &testEngine{clock: time.Now().Add(time.Hour)}
	te.Engine = NewEngine(Config{TerminalID: "t1", VenueID: "v1", Workers: 4, MaxRebases: 2}, store, up, policy)
	te.Engine.now = func() time.Time { return te.clock }
	return te
}

// drain dispatches until the queue is empty or rounds run out, moving the
// clock past every backoff between rounds.
func (te *testEngine) drain(t *testing.T, rounds int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < rounds; i++ {
		if err := te.DispatchOnce(ctx); err != nil {
			t.Fatalf("DispatchOnce() error = %v", err)
		}
		te.clock = te.clock.Add(time.Minute)
		if queued, _ := te.store.Depth(); queued == 0 {
			return
		}
	}
}

func (te *testEngine) enqueue(t *testing.T, order string, expected int64, key string, kind models.MutationKind) *Entry {
	t.Helper()
	m := models.Mutation{Kind: kind}
	if kind == models.MutationAddItem {
		m.SKU = "burger"
		m.Quantity = 1
	}
	e, err := te.Enqueue(context.Background(), Submission{
		OrderID:         order,
		ExpectedVersion: expected,
		IdempotencyKey:  key,
		Mutation:        m,
	})
	if err != nil {
		t.Fatalf("Enqueue(%s) error = %v", key, err)
	}
	return e
}
