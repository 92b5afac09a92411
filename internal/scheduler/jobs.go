// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package scheduler

import (
	"context"
	"time"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/payment"
)

// Job names.
const (
	JobSAFForward       = "saf-forward"
	JobIdempotencyPrune = "idempotency-prune"
	JobAuditCleanup     = "audit-cleanup"
	JobStorageGC        = "storage-gc"
	JobLockoutCleanup   = "lockout-cleanup"
	JobStorageBackup    = "storage-backup"
)

// Forwarder is satisfied by *payment.Service.
type Forwarder interface {
	Depth() int
	ProcessorAvailable() bool
	ForwardBatch(ctx context.Context) (payment.ForwardResult, error)
}

// Pruner is satisfied by *ledger.MemoryIdempotencyStore.
type Pruner interface {
	Prune(ctx context.Context) int
}

// AuditCleaner is satisfied by *audit.Logger.
type AuditCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// GarbageCollector is satisfied by *wal.DB.
type GarbageCollector interface {
	RunGC() error
}

// Backupper is satisfied by *backup.Manager.
type Backupper interface {
	Run(ctx context.Context) error
}

// LockoutCleaner is satisfied by *auth.LockoutManager.
type LockoutCleaner interface {
	Cleanup() int
}

// SAFForwardJob drains the store-and-forward queue while the processor is
// reachable. Runs are skipped when the queue is empty or the breaker is open.
func SAFForwardJob(interval time.Duration, f Forwarder) Job {
	return Job{
		Name:     JobSAFForward,
		Interval: interval,
		When: func() bool {
			return f.Depth() > 0 && f.ProcessorAvailable()
		},
		Run: func(ctx context.Context) error {
			_, err := f.ForwardBatch(ctx)
			return err
		},
	}
}

// IdempotencyPruneJob drops expired idempotency records.
func IdempotencyPruneJob(interval time.Duration, p Pruner) Job {
	return Job{
		Name:     JobIdempotencyPrune,
		Interval: interval,
		Run: func(ctx context.Context) error {
			if n := p.Prune(ctx); n > 0 {
				logging.Debug().Int("pruned", n).Msg("Pruned idempotency records")
			}
			return nil
		},
	}
}

// AuditCleanupJob enforces audit retention.
func AuditCleanupJob(interval time.Duration, c AuditCleaner) Job {
	return Job{
		Name:     JobAuditCleanup,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := c.Cleanup(ctx)
			return err
		},
	}
}

// StorageGCJob reclaims value-log space in the local store.
func StorageGCJob(interval time.Duration, gc GarbageCollector) Job {
	return Job{
		Name:     JobStorageGC,
		Interval: interval,
		Run: func(context.Context) error {
			return gc.RunGC()
		},
	}
}

// LockoutCleanupJob forgets expired terminal lockouts.
func LockoutCleanupJob(interval time.Duration, c LockoutCleaner) Job {
	return Job{
		Name:     JobLockoutCleanup,
		Interval: interval,
		Run: func(context.Context) error {
			c.Cleanup()
			return nil
		},
	}
}

// StorageBackupJob snapshots the local store and prunes old snapshots.
func StorageBackupJob(interval time.Duration, b Backupper) Job {
	return Job{
		Name:     JobStorageBackup,
		Interval: interval,
		Run:      b.Run,
	}
}
