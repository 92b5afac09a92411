// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/wal"
)

// StorageComponents holds the persistence backends the ledger, payments
// and outbox run on.
type StorageComponents struct {
	DB      *wal.DB
	Orders  ledger.Store
	Idem    ledger.IdempotencyStore
	Catalog catalog.Catalog

	memIdem *ledger.MemoryIdempotencyStore
	checks  map[string]func(ctx context.Context) error
	closers []func()
}

// walConfig maps storage settings onto BadgerDB options.
func walConfig(cfg *config.Config) wal.Config {
	if cfg.Storage.InMemory {
		return wal.TestConfig()
	}
	wc := wal.DefaultConfig(cfg.Storage.Path)
	wc.SyncWrites = cfg.Storage.SyncWrites
	return wc
}

// InitStorage opens BadgerDB and selects the order and idempotency stores.
// Postgres and Redis are used when enabled; otherwise both live in process.
func InitStorage(ctx context.Context, cfg *config.Config) (*StorageComponents, error) {
	db, err := wal.Open(walConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	sc := &StorageComponents{
		DB:     db,
		checks: make(map[string]func(ctx context.Context) error),
	}
	sc.closers = append(sc.closers, func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	})

	if cfg.Postgres.Enabled {
		pg, err := ledger.NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			sc.Close()
			return nil, err
		}
		sc.Orders = pg
		sc.checks["postgres"] = pg.Ping
		sc.closers = append(sc.closers, pg.Close)
		logging.Info().Int32("max_conns", cfg.Postgres.MaxConns).Msg("Order store: PostgreSQL")
	} else {
		sc.Orders = ledger.NewMemoryStore()
		logging.Info().Msg("Order store: in-memory")
	}

	if cfg.Redis.Enabled {
		rs, err := ledger.NewRedisIdempotencyStore(ctx, ledger.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.KeyPrefix,
			TTL:      cfg.Ledger.IdempotencyTTL,
		})
		if err != nil {
			sc.Close()
			return nil, err
		}
		sc.Idem = rs
		sc.closers = append(sc.closers, func() {
			if err := rs.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing Redis client")
			}
		})
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Idempotency store: Redis")
	} else {
		mem := ledger.NewMemoryIdempotencyStore(cfg.Ledger.IdempotencyTTL)
		sc.Idem = mem
		sc.memIdem = mem
		sc.closers = append(sc.closers, mem.Close)
	}

	cat, err := initCatalog(cfg)
	if err != nil {
		sc.Close()
		return nil, err
	}
	sc.Catalog = cat
	return sc, nil
}

// MemoryIdempotency returns the in-process idempotency store, or nil when
// Redis owns expiry.
func (sc *StorageComponents) MemoryIdempotency() *ledger.MemoryIdempotencyStore {
	return sc.memIdem
}

// ReadinessChecks returns the probes for external stores.
func (sc *StorageComponents) ReadinessChecks() map[string]func(ctx context.Context) error {
	return sc.checks
}

// Close releases stores in reverse order of opening.
func (sc *StorageComponents) Close() {
	for i := len(sc.closers) - 1; i >= 0; i-- {
		sc.closers[i]()
	}
	sc.closers = nil
}

func initCatalog(cfg *config.Config) (catalog.Catalog, error) {
	if cfg.Catalog.File == "" {
		logging.Warn().Msg("No catalog file configured; every product will be rejected")
		return catalog.NewStatic(nil), nil
	}
	static, err := catalog.LoadFile(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logging.Info().Str("file", cfg.Catalog.File).Msg("Catalog loaded")
	if cfg.Catalog.CacheTTL <= 0 {
		return static, nil
	}
	return catalog.NewCached(static, cfg.Catalog.CacheTTL), nil
}

// InitBackup creates the snapshot manager for the local store. It returns
// nil when backups are disabled. Completed snapshots are recorded in the
// audit trail when auditLog is set.
func InitBackup(cfg *config.Config, db *wal.DB, auditLog *audit.Logger) (*backup.Manager, error) {
	if !cfg.Backup.Enabled {
		logging.Info().Msg("Storage backups disabled (BACKUP_ENABLED=false)")
		return nil, nil
	}
	m, err := backup.NewManager(cfg.Backup, db)
	if err != nil {
		return nil, fmt.Errorf("init backups: %w", err)
	}
	if auditLog != nil {
		system := models.Actor{VenueID: cfg.Server.VenueID, TerminalID: "scheduler", Role: models.RoleAdmin}
		m.SetOnBackupComplete(func(b *backup.Backup) {
			auditLog.LogAdminAction(context.Background(), system, "storage.backup",
				"Storage snapshot "+b.ID+" completed", map[string]any{
					"trigger":  b.Trigger,
					"size":     b.FileSize,
					"checksum": b.Checksum,
				})
		})
	}
	logging.Info().
		Str("dir", cfg.Backup.Dir).
		Dur("interval", cfg.Backup.Interval).
		Int("existing", len(m.ListBackups())).
		Msg("Storage backups enabled")
	return m, nil
}
