// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/tabline/internal/models"
)

// ErrOrderExists is returned by Store.Insert when the order ID is taken.
var ErrOrderExists = errors.New("order already exists")

// UpdateFunc mutates a private copy of an order while its row lock is held.
// It returns changed=false to release the lock without writing.
type UpdateFunc func(o *models.Order) (changed bool, err error)

// Store persists orders. Implementations serialize Update calls per order
// and never block updates of different orders on each other.
type Store interface {
	// Insert stores a new order, stamping ChangeSeq.
	Insert(ctx context.Context, o *models.Order) (*models.Order, error)

	// Get returns a copy of the order or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Order, error)

	// Update acquires the order's row lock, waiting at most lockWait, runs fn
	// on a copy and persists the copy when fn reports a change. A lock wait
	// timeout returns apperr.ErrBusy; a failed write after fn succeeded
	// returns *apperr.CommitError.
	Update(ctx context.Context, id string, lockWait time.Duration, fn UpdateFunc) (*models.Order, error)

	// ListOpen returns the venue's open orders and the change cursor they
	// are consistent with.
	ListOpen(ctx context.Context, venueID string) ([]models.Order, int64, error)

	// ChangesSince returns orders written after cursor, open or not, and the
	// cursor to resume from. Rows may be returned more than once.
	ChangesSince(ctx context.Context, venueID string, cursor int64) ([]models.Order, int64, error)
}
