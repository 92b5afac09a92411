// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"time"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/payment"
	"github.com/tomtom215/tabline/internal/scheduler"
	"github.com/tomtom215/tabline/internal/wal"
)

// schedulerStopTimeout bounds how long a running job may delay shutdown.
const schedulerStopTimeout = 10 * time.Second

// InitScheduler registers the periodic jobs. Jobs with a zero interval are
// skipped by the scheduler itself.
func InitScheduler(cfg *config.Config, payments *payment.Service, idem *ledger.MemoryIdempotencyStore, auditLog *audit.Logger, db *wal.DB, lockout *auth.LockoutManager, backups *backup.Manager) *scheduler.Scheduler {
	s := scheduler.New(schedulerStopTimeout)

	s.Add(scheduler.SAFForwardJob(cfg.Payment.Service.SAFForwardInterval, payments))
	if idem != nil {
		s.Add(scheduler.IdempotencyPruneJob(cfg.Scheduler.IdempotencyPruneInterval, idem))
	}
	s.Add(scheduler.AuditCleanupJob(cfg.Scheduler.AuditCleanupInterval, auditLog))
	if !cfg.Storage.InMemory {
		s.Add(scheduler.StorageGCJob(cfg.Scheduler.StorageGCInterval, db))
	}
	s.Add(scheduler.LockoutCleanupJob(cfg.Security.LockoutDuration, lockout))
	if backups != nil {
		s.Add(scheduler.StorageBackupJob(cfg.Backup.Interval, backups))
	}

	logging.Info().Strs("jobs", s.Jobs()).Msg("Scheduler configured")
	return s
}
