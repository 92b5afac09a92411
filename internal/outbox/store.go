// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/wal"
)

// Key prefixes.
const (
	prefixEntry     = "entry:"
	prefixSeq       = "seq:"
	prefixDLQ       = "dlq:"
	prefixOrder     = "cache:order:"
	keyCursor       = "meta:cursor"
	defaultDLQTTL   = 7 * 24 * time.Hour
	maxTxnRetries   = 5
)

var (
	// ErrEntryNotFound is returned when an entry or dead letter does not exist.
	ErrEntryNotFound = errors.New("outbox entry not found")

	// ErrStaleEntry is returned when an entry changed under the caller.
	ErrStaleEntry = errors.New("outbox entry changed concurrently")
)

// Store is the durable outbox and order cache.
type Store struct {
	db         *wal.DB
	terminalID string
	dlqTTL     time.Duration
	now        func() time.Time
}

// NewStore wraps db. dlqTTL bounds how long dead letters are kept.
func NewStore(db *wal.DB, terminalID string, dlqTTL time.Duration) *Store {
	if dlqTTL <= 0 {
		dlqTTL = defaultDLQTTL
	}
	return &Store{db: db, terminalID: terminalID, dlqTTL: dlqTTL, now: time.Now}
}

// update retries a Badger transaction that lost a write conflict.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Enqueue appends a mutation to the order's queue. The sequence is
// assigned inside the same transaction, so a new local mutation always
// lands behind every pending entry for the order.
func (s *Store) Enqueue(_ context.Context, sub Submission) (*Entry, error) {
	now := s.now().UTC()
	e := &Entry{
		ID:              uuid.NewString(),
		TerminalID:      s.terminalID,
		OrderID:         sub.OrderID,
		Mutation:        sub.Mutation,
		ExpectedVersion: sub.ExpectedVersion,
		IdempotencyKey:  sub.IdempotencyKey,
		Status:          StatusPending,
		CreatedAt:       now,
		NextAttemptAt:   now,
	}

	err := s.update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, sub.OrderID)
		if err != nil {
			return err
		}
		e.Sequence = seq
		return wal.SetJSON(txn, e.key(), e, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue order %s: %w", sub.OrderID, err)
	}
	s.refreshDepth()
	return e, nil
}

func nextSeq(txn *badger.Txn, orderID string) (uint64, error) {
	key := prefixSeq + orderID
	var last uint64
	item, err := txn.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(v []byte) error {
			last, err = strconv.ParseUint(string(v), 10, 64)
			return err
		}); err != nil {
			return 0, fmt.Errorf("read sequence for %s: %w", orderID, err)
		}
	}
	next := last + 1
	if err := txn.Set([]byte(key), []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// Heads returns the first queued entry of every order, in order id order.
func (s *Store) Heads(_ context.Context) ([]*Entry, error) {
	var heads []*Entry
	lastOrder := ""
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefixEntry, func(_ string, val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			if e.OrderID == lastOrder {
				return nil
			}
			lastOrder = e.OrderID
			heads = append(heads, &e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list queue heads: %w", err)
	}
	return heads, nil
}

// Head returns the first queued entry for one order.
func (s *Store) Head(_ context.Context, orderID string) (*Entry, error) {
	var head *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, entryPrefix(orderID), func(_ string, val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			head = &e
			return wal.ErrStopScan
		})
	})
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, ErrEntryNotFound
	}
	return head, nil
}

// Pending returns every queued entry, optionally for one order only.
func (s *Store) Pending(_ context.Context, orderID string) ([]Entry, error) {
	prefix := prefixEntry
	if orderID != "" {
		prefix = entryPrefix(orderID)
	}
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefix, func(_ string, val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// Save writes e back after a state change. The entry must still exist.
func (s *Store) Save(_ context.Context, e *Entry) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(e.key())); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrStaleEntry
			}
			return err
		}
		return wal.SetJSON(txn, e.key(), e, 0)
	})
}

// Confirm deletes e and upserts the authoritative order in one transaction.
func (s *Store) Confirm(_ context.Context, e *Entry, order *models.Order) error {
	err := s.update(func(txn *badger.Txn) error {
		if err := wal.Delete(txn, e.key()); err != nil {
			return err
		}
		if order != nil {
			_, err := upsertOrder(txn, order)
			return err
		}
		return nil
	})
	s.refreshDepth()
	return err
}

// DeadLetter moves e out of the queue so the order's next entry can run.
func (s *Store) DeadLetter(_ context.Context, e *Entry, class, reason string) error {
	now := s.now().UTC()
	e.Status = StatusDeadLetter
	e.ErrorClass = class
	e.LastError = reason
	e.DeadLetteredAt = &now

	err := s.update(func(txn *badger.Txn) error {
		if err := wal.Delete(txn, e.key()); err != nil {
			return err
		}
		return wal.SetJSON(txn, prefixDLQ+e.ID, e, s.dlqTTL)
	})
	s.refreshDepth()
	return err
}

// DeadLetters returns dead-lettered entries, oldest first.
func (s *Store) DeadLetters(_ context.Context) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefixDLQ, func(_ string, val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeadLetteredAt.Before(*out[j].DeadLetteredAt)
	})
	return out, err
}

// Requeue moves a dead letter back to the tail of its order's queue with a
// fresh attempt budget. The idempotency key is kept, so a mutation that did
// land before being dead-lettered is recognised as a replay.
func (s *Store) Requeue(_ context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.update(func(txn *badger.Txn) error {
		if err := wal.GetJSON(txn, prefixDLQ+id, &e); err != nil {
			if errors.Is(err, wal.ErrNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		seq, err := nextSeq(txn, e.OrderID)
		if err != nil {
			return err
		}
		e.Sequence = seq
		e.Status = StatusPending
		e.Attempts = 0
		e.Rebases = 0
		e.DeadLetteredAt = nil
		e.NextAttemptAt = s.now().UTC()
		if err := wal.Delete(txn, prefixDLQ+id); err != nil {
			return err
		}
		return wal.SetJSON(txn, e.key(), &e, 0)
	})
	if err != nil {
		return nil, err
	}
	s.refreshDepth()
	return &e, nil
}

// RepairSending returns entries left in sending by a crash to pending.
func (s *Store) RepairSending(ctx context.Context) (int, error) {
	entries, err := s.Pending(ctx, "")
	if err != nil {
		return 0, err
	}
	repaired := 0
	for i := range entries {
		e := &entries[i]
		if e.Status != StatusSending {
			continue
		}
		e.Status = StatusPending
		e.NextAttemptAt = s.now().UTC()
		if err := s.Save(ctx, e); err != nil && !errors.Is(err, ErrStaleEntry) {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

// Depth returns the number of queued and dead-lettered entries.
func (s *Store) Depth() (queued, dead int) {
	_ = s.db.View(func(txn *badger.Txn) error {
		queued = wal.Count(txn, prefixEntry)
		dead = wal.Count(txn, prefixDLQ)
		return nil
	})
	return queued, dead
}

func (s *Store) refreshDepth() {
	queued, dead := s.Depth()
	metrics.OutboxDepth.Set(float64(queued))
	metrics.OutboxDeadLetters.Set(float64(dead))
}

// CachedOrder returns the locally cached copy of an order.
func (s *Store) CachedOrder(_ context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.GetJSON(txn, prefixOrder+id, &o)
	})
	if errors.Is(err, wal.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CachedOrders returns every cached order sorted by id.
func (s *Store) CachedOrders(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefixOrder, func(_ string, val []byte) error {
			var o models.Order
			if err := json.Unmarshal(val, &o); err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	return out, err
}

// UpsertOrder stores o unless the cache already holds the same or a newer
// version. It reports whether the cache changed.
func (s *Store) UpsertOrder(_ context.Context, o *models.Order) (bool, error) {
	var changed bool
	err := s.update(func(txn *badger.Txn) error {
		var err error
		changed, err = upsertOrder(txn, o)
		return err
	})
	return changed, err
}

func upsertOrder(txn *badger.Txn, o *models.Order) (bool, error) {
	var cur models.Order
	err := wal.GetJSON(txn, prefixOrder+o.ID, &cur)
	switch {
	case errors.Is(err, wal.ErrNotFound):
	case err != nil:
		return false, err
	case cur.Version >= o.Version:
		return false, nil
	}
	return true, wal.SetJSON(txn, prefixOrder+o.ID, o, 0)
}

// RemoveOrders drops orders from the cache.
func (s *Store) RemoveOrders(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := wal.Delete(txn, prefixOrder+id); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueuedOrderIDs returns the ids of orders with at least one queued entry.
func (s *Store) QueuedOrderIDs(ctx context.Context) (map[string]struct{}, error) {
	heads, err := s.Heads(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(heads))
	for _, h := range heads {
		ids[h.OrderID] = struct{}{}
	}
	return ids, nil
}

// Cursor returns the last persisted delta cursor.
func (s *Store) Cursor(_ context.Context) (int64, error) {
	var cursor int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCursor))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			cursor, err = strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
			return err
		})
	})
	return cursor, err
}

// SetCursor persists the delta cursor.
func (s *Store) SetCursor(_ context.Context, cursor int64) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyCursor), []byte(strconv.FormatInt(cursor, 10)))
	})
}
