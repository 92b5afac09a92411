// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

// MemoryStore keeps orders in process memory. It is the edge server's store
// when no Postgres DSN is configured, and the store used by tests.
//
// Row locks come from RowLocks; the map mutex is held only for the copy in
// and the copy out, so a slow UpdateFunc never blocks other orders.
type MemoryStore struct {
	locks *RowLocks

	mu     sync.RWMutex
	orders map[string]*models.Order
	seq    int64

	// failWrites makes the next Update fail after fn ran. Tests only.
	failWrites error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:  NewRowLocks(),
		orders: make(map[string]*models.Order),
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, o *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return nil, fmt.Errorf("insert %s: %w", o.ID, ErrOrderExists)
	}
	s.seq++
	stored := o.Clone()
	stored.ChangeSeq = s.seq
	s.orders[o.ID] = stored
	return stored.Clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o.Clone(), nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id string, lockWait time.Duration, fn UpdateFunc) (*models.Order, error) {
	release, err := s.locks.Acquire(ctx, id, lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	working, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return working, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		err := s.failWrites
		s.failWrites = nil
		return nil, &apperr.CommitError{OrderID: id, Err: err}
	}

	s.seq++
	working.ChangeSeq = s.seq
	s.orders[id] = working.Clone()
	return working, nil
}

// ListOpen implements Store.
func (s *MemoryStore) ListOpen(_ context.Context, venueID string) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.VenueID == venueID && o.Status.Open() {
			out = append(out, *o.Clone())
		}
	}
	sortByChangeSeq(out)
	return out, s.seq, nil
}

// ChangesSince implements Store.
func (s *MemoryStore) ChangesSince(_ context.Context, venueID string, cursor int64) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.VenueID == venueID && o.ChangeSeq > cursor {
			out = append(out, *o.Clone())
		}
	}
	sortByChangeSeq(out)
	return out, s.seq, nil
}

// FailNextWrite makes the next Update that reaches the write step fail with
// err. It exists so callers can exercise their compensation paths.
func (s *MemoryStore) FailNextWrite(err error) {
	s.mu.Lock()
	s.failWrites = err
	s.mu.Unlock()
}

func sortByChangeSeq(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ChangeSeq < orders[j].ChangeSeq })
}
