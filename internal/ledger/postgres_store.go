// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

// Postgres error codes the store maps onto ledger errors.
const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// deltaOverlap widens delta reads so a sequence value taken by a
// transaction that committed late is still returned. Upserting by version
// makes the duplicates harmless to terminals.
const deltaOverlap = 5 * time.Second

const schema = `
CREATE SEQUENCE IF NOT EXISTS order_change_seq;

CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	venue_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	version      BIGINT NOT NULL,
	change_seq   BIGINT NOT NULL,
	doc          JSONB NOT NULL,
	applied_keys JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_venue_status ON orders (venue_id, status);
CREATE INDEX IF NOT EXISTS idx_orders_venue_change_seq ON orders (venue_id, change_seq);
`

// openStatuses is the SQL list of statuses that belong on terminals.
var openStatuses = []string{
	string(models.StatusDraft),
	string(models.StatusSent),
	string(models.StatusSplit),
	string(models.StatusPartiallyPaid),
	string(models.StatusPaid),
}

// PostgresStore is the cloud store of record. The order document lives in a
// JSONB column; the columns beside it exist for locking and queries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, verifies the connection and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks connectivity for the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, o *models.Order) (*models.Order, error) {
	stored := o.Clone()
	doc, keys, err := encodeOrder(stored)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO orders (id, venue_id, status, version, change_seq, doc, applied_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, nextval('order_change_seq'), $5, $6, $7, $8)
		RETURNING change_seq`,
		stored.ID, stored.VenueID, string(stored.Status), stored.Version, doc, keys, stored.CreatedAt, stored.UpdatedAt,
	).Scan(&stored.ChangeSeq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("insert %s: %w", o.ID, ErrOrderExists)
		}
		return nil, fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return stored, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc, applied_keys, change_seq FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// Update implements Store with SELECT ... FOR UPDATE under a transaction
// scoped lock_timeout.
func (s *PostgresStore) Update(ctx context.Context, id string, lockWait time.Duration, fn UpdateFunc) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Transient("begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// SET LOCAL does not take bind parameters.
	ms := lockWait.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)); err != nil {
		return nil, apperr.Transient("set lock timeout", err)
	}

	row := tx.QueryRow(ctx, `SELECT doc, applied_keys, change_seq FROM orders WHERE id = $1 FOR UPDATE`, id)
	working, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
		case errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable:
			return nil, apperr.ErrBusy
		}
		return nil, apperr.Transient("lock order", err)
	}

	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return working, nil
	}

	doc, keys, err := encodeOrder(working)
	if err != nil {
		return nil, &apperr.CommitError{OrderID: id, Err: err}
	}
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, version = $3, change_seq = nextval('order_change_seq'),
		    doc = $4, applied_keys = $5, updated_at = $6
		WHERE id = $1
		RETURNING change_seq`,
		id, string(working.Status), working.Version, doc, keys, working.UpdatedAt,
	).Scan(&working.ChangeSeq)
	if err != nil {
		return nil, &apperr.CommitError{OrderID: id, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &apperr.CommitError{OrderID: id, Err: err}
	}
	return working, nil
}

// ListOpen implements Store. The cursor is read before the rows so a write
// racing the snapshot is picked up by the next delta.
func (s *PostgresStore) ListOpen(ctx context.Context, venueID string) ([]models.Order, int64, error) {
	cursor, err := s.currentSeq(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT doc, applied_keys, change_seq FROM orders
		WHERE venue_id = $1 AND status = ANY($2)
		ORDER BY change_seq`, venueID, openStatuses)
	if err != nil {
		return nil, 0, fmt.Errorf("list open orders: %w", err)
	}
	orders, err := collectOrders(rows)
	return orders, cursor, err
}

// ChangesSince implements Store.
func (s *PostgresStore) ChangesSince(ctx context.Context, venueID string, cursor int64) ([]models.Order, int64, error) {
	next, err := s.currentSeq(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT doc, applied_keys, change_seq FROM orders
		WHERE venue_id = $1 AND (change_seq > $2 OR updated_at > $3)
		ORDER BY change_seq`, venueID, cursor, time.Now().Add(-deltaOverlap))
	if err != nil {
		return nil, 0, fmt.Errorf("query changes: %w", err)
	}
	orders, err := collectOrders(rows)
	return orders, next, err
}

func (s *PostgresStore) currentSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(change_seq), 0) FROM orders`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read change cursor: %w", err)
	}
	return seq, nil
}

func encodeOrder(o *models.Order) (doc, keys []byte, err error) {
	doc, err = json.Marshal(o)
	if err != nil {
		return nil, nil, fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	applied := o.AppliedKeys
	if applied == nil {
		applied = []models.AppliedKey{}
	}
	keys, err = json.Marshal(applied)
	if err != nil {
		return nil, nil, fmt.Errorf("encode applied keys %s: %w", o.ID, err)
	}
	return doc, keys, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		doc, keys []byte
		seq       int64
	)
	if err := row.Scan(&doc, &keys, &seq); err != nil {
		return nil, err
	}
	var o models.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if err := json.Unmarshal(keys, &o.AppliedKeys); err != nil {
		return nil, fmt.Errorf("decode applied keys: %w", err)
	}
	o.ChangeSeq = seq
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
