// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package backup snapshots the edge server's local store.
//
// The BadgerDB store holds the outbox queue, the store-and-forward payment
// queue and payment records; losing the disk loses unsynced orders and
// offline card payments. The Manager streams a consistent Badger backup
// through gzip into Dir, records a SHA-256 checksum in an index file and
// prunes old snapshots by a retention policy.
//
//	┌──────────────┐     ┌─────────────┐     ┌──────────────────────────┐
//	│  Scheduler   │────▶│   Manager   │────▶│ snapshot-*.badger.gz     │
//	└──────────────┘     └─────────────┘     │ backups.json             │
//	                            │            └──────────────────────────┘
//	                            ▼
//	                     ┌─────────────┐
//	                     │  wal.DB     │
//	                     └─────────────┘
//
// Usage:
//
//	manager, err := backup.NewManager(cfg, db)
//	b, err := manager.CreateBackup(ctx, backup.TriggerManual, "before upgrade")
//
//	// Restore into a fresh store
//	fresh, _ := wal.Open(wal.DefaultConfig("/data/tabline.restored"))
//	err = manager.Restore(ctx, b.ID, fresh)
package backup
