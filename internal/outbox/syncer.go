// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// Syncer reconciles the local order cache with the upstream server.
//
// Both operations are merges: an order is only replaced by a strictly newer
// version, and an order that still has queued local mutations is never
// pruned, so optimistic local state survives until its entries confirm.
type Syncer struct {
	store  *Store
	client Client
	logger zerolog.Logger

	mu sync.Mutex // one reconcile at a time
}

// NewSyncer creates a syncer over store.
func NewSyncer(store *Store, client Client) *Syncer {
	return &Syncer{
		store:  store,
		client: client,
		logger: logging.WithComponent("sync"),
	}
}

// SyncStats summarises one reconcile.
type SyncStats struct {
	Upserted int   `json:"upserted"`
	Removed  int   `json:"removed"`
	Kept     int   `json:"kept"` // Absent upstream but protected by queued entries
	Cursor   int64 `json:"cursor"`
}

// Bootstrap fetches the full snapshot and merges it into the cache.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	_, err := s.BootstrapStats(ctx)
	return err
}

// BootstrapStats is Bootstrap returning what changed.
func (s *Syncer) BootstrapStats(ctx context.Context) (stats SyncStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordSync("bootstrap", err) }()

	snap, err := s.client.Bootstrap(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch snapshot: %w", err)
	}

	live := make(map[string]struct{}, len(snap.Orders))
	for i := range snap.Orders {
		o := &snap.Orders[i]
		live[o.ID] = struct{}{}
		changed, err := s.store.UpsertOrder(ctx, o)
		if err != nil {
			return stats, err
		}
		if changed {
			stats.Upserted++
		}
	}

	cached, err := s.store.CachedOrders(ctx)
	if err != nil {
		return stats, err
	}
	queued, err := s.store.QueuedOrderIDs(ctx)
	if err != nil {
		return stats, err
	}
	var gone []string
	for i := range cached {
		id := cached[i].ID
		if _, ok := live[id]; ok {
			continue
		}
		if _, ok := queued[id]; ok {
			stats.Kept++
			continue
		}
		gone = append(gone, id)
	}
	if err := s.store.RemoveOrders(ctx, gone); err != nil {
		return stats, err
	}
	stats.Removed = len(gone)

	if err := s.store.SetCursor(ctx, snap.Cursor); err != nil {
		return stats, err
	}
	stats.Cursor = snap.Cursor

	s.logger.Info().
		Int("upserted", stats.Upserted).
		Int("removed", stats.Removed).
		Int("kept", stats.Kept).
		Int64("cursor", stats.Cursor).
		Msg("Bootstrap complete")
	return stats, nil
}

// Delta fetches changes since the persisted cursor and merges them.
func (s *Syncer) Delta(ctx context.Context) error {
	_, err := s.DeltaStats(ctx)
	return err
}

// DeltaStats is Delta returning what changed.
func (s *Syncer) DeltaStats(ctx context.Context) (stats SyncStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordSync("delta", err) }()

	since, err := s.store.Cursor(ctx)
	if err != nil {
		return stats, err
	}
	delta, err := s.client.Delta(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("fetch delta since %d: %w", since, err)
	}

	for i := range delta.Orders {
		changed, err := s.store.UpsertOrder(ctx, &delta.Orders[i])
		if err != nil {
			return stats, err
		}
		if changed {
			stats.Upserted++
		}
	}

	queued, err := s.store.QueuedOrderIDs(ctx)
	if err != nil {
		return stats, err
	}
	gone := make([]string, 0, len(delta.Removed))
	for _, id := range delta.Removed {
		if _, ok := queued[id]; ok {
			stats.Kept++
			continue
		}
		gone = append(gone, id)
	}
	if err := s.store.RemoveOrders(ctx, gone); err != nil {
		return stats, err
	}
	stats.Removed = len(gone)

	if delta.Cursor > since {
		if err := s.store.SetCursor(ctx, delta.Cursor); err != nil {
			return stats, err
		}
	}
	stats.Cursor = max(delta.Cursor, since)

	if stats.Upserted > 0 || stats.Removed > 0 {
		s.logger.Debug().
			Int("upserted", stats.Upserted).
			Int("removed", stats.Removed).
			Int64("cursor", stats.Cursor).
			Msg("Delta applied")
	}
	return stats, nil
}
