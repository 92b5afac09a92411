// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package wal is the durable local storage layer shared by the outbox, the
// terminal order cache and the payment store-and-forward queue.
//
// It wraps BadgerDB with the conventions those components rely on:
//
//   - values are JSON documents (goccy/go-json)
//   - keys are ASCII with a "kind:" prefix and zero-padded sequence numbers
//     so lexical order is queue order
//   - writes are synchronous (fsync) unless explicitly disabled
//   - every multi-key change happens in one Badger transaction
//
// # Usage
//
//	db, err := wal.Open(wal.Config{Path: "/data/outbox", SyncWrites: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.Update(func(txn *badger.Txn) error {
//	    return wal.SetJSON(txn, "entry:o1:00000000000000000001", entry, 0)
//	})
//
// Callers run RunGC periodically to reclaim value-log space.
package wal
