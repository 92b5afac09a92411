// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/wal"
)

const (
	prefixRecord = "pay:rec:"
	prefixKey    = "pay:key:"
	prefixSAF    = "pay:saf:"
	keySAFSeq    = "pay:meta:saf_seq"
)

// Store persists authorization records and the SAF queue in Badger.
type Store struct {
	db *wal.DB
}

// NewStore wraps db. The outbox may share the same database; key prefixes
// keep them apart.
func NewStore(db *wal.DB) *Store {
	return &Store{db: db}
}

// Get returns the record for reference.
func (s *Store) Get(_ context.Context, reference string) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.GetJSON(txn, prefixRecord+reference, &rec)
	})
	if errors.Is(err, wal.ErrNotFound) {
		return nil, fmt.Errorf("payment %s: %w", reference, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ByKey returns the record created with an authorization idempotency key.
func (s *Store) ByKey(ctx context.Context, key string) (*Record, error) {
	var ref string
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.GetJSON(txn, prefixKey+key, &ref)
	})
	if errors.Is(err, wal.ErrNotFound) {
		return nil, fmt.Errorf("payment key %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ref)
}

// Create stores a new record and its idempotency key. When queue is set the
// record is appended to the SAF queue in the same transaction.
func (s *Store) Create(_ context.Context, rec *Record, queue bool) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixKey + rec.IdempotencyKey)); err == nil {
			return apperr.Validation("idempotency_key", "idempotency key was already used for another payment")
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := wal.SetJSON(txn, prefixRecord+rec.Reference, rec, 0); err != nil {
			return err
		}
		if err := wal.SetJSON(txn, prefixKey+rec.IdempotencyKey, rec.Reference, 0); err != nil {
			return err
		}
		if queue {
			return enqueueSAF(txn, rec.Reference)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if queue {
		s.refreshDepth()
	}
	return nil
}

// Save overwrites an existing record.
func (s *Store) Save(_ context.Context, rec *Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return wal.SetJSON(txn, prefixRecord+rec.Reference, rec, 0)
	})
}

// List returns records matching filter, in reference order.
func (s *Store) List(_ context.Context, filter func(*Record) bool) ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefixRecord, func(_ string, val []byte) error {
			var rec Record
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			if filter == nil || filter(&rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

// safItem is one SAF queue slot.
type safItem struct {
	Reference string    `json:"reference"`
	QueuedAt  time.Time `json:"queued_at"`
}

func enqueueSAF(txn *badger.Txn, reference string) error {
	var seq uint64
	item, err := txn.Get([]byte(keySAFSeq))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		if err := item.Value(func(v []byte) error {
			seq, err = strconv.ParseUint(string(v), 10, 64)
			return err
		}); err != nil {
			return err
		}
	}
	seq++
	if err := txn.Set([]byte(keySAFSeq), []byte(strconv.FormatUint(seq, 10))); err != nil {
		return err
	}
	return wal.SetJSON(txn, fmt.Sprintf("%s%020d", prefixSAF, seq), safItem{Reference: reference, QueuedAt: time.Now().UTC()}, 0)
}

// queued returns SAF slots in FIFO order, keyed by their store key.
func (s *Store) queued(limit int) ([]string, []safItem, error) {
	var (
		keys  []string
		items []safItem
	)
	err := s.db.View(func(txn *badger.Txn) error {
		return wal.Scan(txn, prefixSAF, func(key string, val []byte) error {
			var it safItem
			if err := json.Unmarshal(val, &it); err != nil {
				return err
			}
			keys = append(keys, key)
			items = append(items, it)
			if limit > 0 && len(keys) >= limit {
				return wal.ErrStopScan
			}
			return nil
		})
	})
	return keys, items, err
}

// dequeue removes a SAF slot.
func (s *Store) dequeue(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return wal.Delete(txn, key)
	})
	s.refreshDepth()
	return err
}

// dequeueReference removes the slot holding reference, if any.
func (s *Store) dequeueReference(reference string) error {
	keys, items, err := s.queued(0)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].Reference == reference {
			return s.dequeue(keys[i])
		}
	}
	return nil
}

// Depth returns the SAF queue length.
func (s *Store) Depth() int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		n = wal.Count(txn, prefixSAF)
		return nil
	})
	return n
}

func (s *Store) refreshDepth() {
	metrics.SAFDepth.Set(float64(s.Depth()))
}
