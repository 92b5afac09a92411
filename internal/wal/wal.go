// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package wal

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/logging"
)

var (
	// ErrClosed is returned when the store is closed.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound is returned by GetJSON for a missing key.
	ErrNotFound = errors.New("key not found")
)

// loadPendingWrites bounds the batches Load keeps in flight.
const loadPendingWrites = 256

// DB is a Badger database with JSON helpers.
type DB struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Local store opened")

	return &DB{db: db, config: cfg}, nil
}

// Update runs fn in a read-write transaction. Badger retries nothing on
// conflict; callers that race on the same keys get badger.ErrConflict.
func (d *DB) Update(fn func(txn *badger.Txn) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.Update(fn)
}

// View runs fn in a read-only snapshot.
func (d *DB) View(fn func(txn *badger.Txn) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.View(fn)
}

// GetJSON loads key into v. A missing key returns ErrNotFound.
func GetJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// SetJSON stores v under key. A positive ttl lets Badger expire the key.
func SetJSON(txn *badger.Txn, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	e := badger.NewEntry([]byte(key), data)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return txn.SetEntry(e)
}

// Delete removes key. Missing keys are not an error.
func Delete(txn *badger.Txn, key string) error {
	return txn.Delete([]byte(key))
}

// Scan calls fn for every key with prefix in key order. Returning
// ErrStopScan from fn ends the scan without error.
func Scan(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.KeyCopy(nil))
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if errors.Is(err, ErrStopScan) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ErrStopScan ends a Scan early.
var ErrStopScan = errors.New("stop scan")

// Count returns the number of keys with prefix.
func Count(txn *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// RunGC rewrites value-log files until Badger reports nothing to reclaim.
func (d *DB) RunGC() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if d.config.InMemory {
		return nil
	}

	for {
		err := d.db.RunValueLogGC(d.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Backup streams every key version newer than since to w in Badger's
// protobuf backup format and returns the version to pass next time for an
// incremental backup. Zero means a full backup.
func (d *DB) Backup(w io.Writer, since uint64) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, ErrClosed
	}
	next, err := d.db.Backup(w, since)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	return next, nil
}

// Load replays a stream written by Backup. Keys in the stream overwrite
// existing ones; load into a fresh database to restore a snapshot exactly.
func (d *DB) Load(r io.Reader) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.db.Load(r, loadPendingWrites); err != nil {
		return fmt.Errorf("load backup: %w", err)
	}
	return nil
}

// Close shuts the database down, giving up after CloseTimeout.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	timeout := d.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- d.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
