// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package ledger is the authoritative, version-controlled store of orders.
//
// Every write names the version it last observed and runs under the order's
// row lock: two writers holding the same version serialize, the second gets
// *apperr.ConflictError with the version the first produced. Writes to
// different orders never wait on each other.
//
// Idempotency keys are recorded on the order in the same write as the
// mutation, so a retried request returns the earlier result instead of
// applying its effects twice. An IdempotencyStore caches full results in
// front of that, and concurrent duplicates collapse through singleflight.
//
// After a write commits, registered Notifiers see the change. Notifiers run
// outside the row lock and cannot fail the write.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/cache"
	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// ActionReopen is the authorization action checked by Reopen.
const ActionReopen = "order:reopen"

// Config holds ledger tuning.
type Config struct {
	LockTimeout         time.Duration `koanf:"lock_timeout" validate:"min=1ms"`
	IdempotencyTTL      time.Duration `koanf:"idempotency_ttl"`
	AppliedKeyRetention int           `koanf:"applied_key_retention" validate:"min=1"`
	ReopenInterval      time.Duration `koanf:"reopen_interval"`
	ReopenBurst         int           `koanf:"reopen_burst" validate:"min=1"`
	NotifyTimeout       time.Duration `koanf:"notify_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:         2 * time.Second,
		IdempotencyTTL:      24 * time.Hour,
		AppliedKeyRetention: 256,
		ReopenInterval:      5 * time.Minute,
		ReopenBurst:         1,
		NotifyTimeout:       2 * time.Second,
	}
}

// ApplyRequest is one mutation against one order.
type ApplyRequest struct {
	OrderID         string          `json:"order_id" validate:"required,max=64"`
	ExpectedVersion int64           `json:"expected_version" validate:"min=0"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"required,max=128,idemkey"`
	Mutation        models.Mutation `json:"mutation"`
	Actor           models.Actor    `json:"actor"`
}

// CreateRequest creates a draft order. OrderID may be chosen by the client
// so that offline terminals can queue further mutations against it.
type CreateRequest struct {
	OrderID        string
	IdempotencyKey string
	TableLabel     string
	Actor          models.Actor
}

// ReopenRequest moves a closed, voided or cancelled order back to sent.
type ReopenRequest struct {
	OrderID         string       `json:"order_id" validate:"required,max=64"`
	ExpectedVersion int64        `json:"expected_version" validate:"min=1"`
	IdempotencyKey  string       `json:"idempotency_key" validate:"required,max=128,idemkey"`
	Reason          string       `json:"reason" validate:"required,max=200"`
	Actor           models.Actor `json:"actor"`
}

// SettleRequest applies a captured payment. ExpectedVersion 0 skips the
// version check; payment writes are still serialized by the row lock.
type SettleRequest struct {
	OrderID         string       `validate:"required,max=64"`
	ExpectedVersion int64        `validate:"min=0"`
	IdempotencyKey  string       `validate:"required,max=128,idemkey"`
	Reference       string       `validate:"required,max=128"`
	Amount          models.Money `validate:"min=1"`
	Actor           models.Actor
}

// CaptureFunc performs the processor capture for a settlement. It runs
// while the order's row lock is held and receives a copy of the order.
type CaptureFunc func(ctx context.Context, o *models.Order) (models.PaymentLine, error)

// PaymentVoidRequest removes a voided payment's effect on an order.
type PaymentVoidRequest struct {
	OrderID        string
	Reference      string
	IdempotencyKey string
	Actor          models.Actor
}

// Result is the outcome of a write.
type Result struct {
	Order    *models.Order `json:"order"`
	Version  int64         `json:"version"`
	Replayed bool          `json:"replayed,omitempty"`
}

// Change describes a committed write to notifiers.
type Change struct {
	Before          *models.Order // nil for creates
	After           *models.Order
	Kind            models.MutationKind
	Mutation        *models.Mutation
	Actor           models.Actor
	IdempotencyKey  string
	ExpectedVersion int64
}

// Notifier observes committed writes.
type Notifier interface {
	OrderCommitted(ctx context.Context, c Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change)

// OrderCommitted implements Notifier.
func (f NotifierFunc) OrderCommitted(ctx context.Context, c Change) { f(ctx, c) }

// Authorizer decides whether an actor may perform a privileged action.
// It returns an error wrapping apperr.ErrForbidden on denial.
type Authorizer interface {
	Authorize(ctx context.Context, actor models.Actor, action string) error
}

// Ledger applies mutations to orders.
type Ledger struct {
	store     Store
	idem      IdempotencyStore
	catalog   catalog.Catalog
	authz     Authorizer
	notifiers []Notifier
	cfg       Config

	group        singleflight.Group
	reopenLimits *cache.Cache[*rate.Limiter]
	now          func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAuthorizer sets the authorizer used by Reopen. Without one, Reopen
// is always forbidden.
func WithAuthorizer(a Authorizer) Option {
	return func(l *Ledger) { l.authz = a }
}

// WithNotifier registers a commit observer.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifiers = append(l.notifiers, n) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger.
func New(store Store, idem IdempotencyStore, cat catalog.Catalog, cfg Config, opts ...Option) *Ledger {
	if cfg.AppliedKeyRetention <= 0 {
		cfg.AppliedKeyRetention = DefaultConfig().AppliedKeyRetention
	}
	if cfg.ReopenBurst <= 0 {
		cfg.ReopenBurst = 1
	}
	window := cfg.ReopenInterval * time.Duration(cfg.ReopenBurst)
	if window <= 0 {
		window = time.Minute
	}
	l := &Ledger{
		store:        store,
		idem:         idem,
		catalog:      cat,
		cfg:          cfg,
		reopenLimits: cache.New[*rate.Limiter](window, window),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddNotifier registers a commit observer after construction.
func (l *Ledger) AddNotifier(n Notifier) {
	l.notifiers = append(l.notifiers, n)
}

// Close releases background resources.
func (l *Ledger) Close() {
	l.reopenLimits.Close()
}

// Apply applies one mutation. See the package documentation for the
// concurrency and idempotency contract.
func (l *Ledger) Apply(ctx context.Context, req ApplyRequest) (*Result, error) {
	start := time.Now()
	res, err := l.apply(ctx, req)
	metrics.RecordLedgerApply(string(req.Mutation.Kind), resultLabel(res, err), time.Since(start))
	return res, err
}

func (l *Ledger) apply(ctx context.Context, req ApplyRequest) (*Result, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr.ToAppError()
	}
	if req.Mutation.ServerOrigin() {
		return nil, apperr.Validationf("kind", "%s is recorded by the server and cannot be submitted", req.Mutation.Kind)
	}
	if req.Mutation.Kind == models.MutationCreate {
		return l.create(ctx, req)
	}

	w := write{
		orderID:  req.OrderID,
		expected: req.ExpectedVersion,
		key:      req.IdempotencyKey,
		fp:       Fingerprint(req.OrderID, &req.Mutation),
		kind:     req.Mutation.Kind,
		mutation: &req.Mutation,
		actor:    req.Actor,
	}
	return l.write(ctx, w, func(ctx context.Context, o *models.Order) (bool, error) {
		if req.Mutation.ItemMutation() && o.HasPayments() {
			return false, apperr.Validation("mutation", "order already has a payment; items are locked")
		}
		if err := applyMutation(ctx, l.catalog, o, &req.Mutation, l.now()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Create creates a draft order at version 1. Repeating a create with the
// same key returns the original order.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	id := req.OrderID
	if id == "" {
		// Derived so a retried create without a client ID lands on the same order.
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.Actor.VenueID+"/"+req.IdempotencyKey)).String()
	}
	return l.Apply(ctx, ApplyRequest{
		OrderID:        id,
		IdempotencyKey: req.IdempotencyKey,
		Mutation:       models.Mutation{Kind: models.MutationCreate, TableLabel: req.TableLabel},
		Actor:          req.Actor,
	})
}

func (l *Ledger) create(ctx context.Context, req ApplyRequest) (*Result, error) {
	if req.ExpectedVersion != 0 {
		return nil, apperr.Validation("expected_version", "expected_version must be 0 when creating an order")
	}
	venue, key := req.Actor.VenueID, req.IdempotencyKey
	fp := Fingerprint(req.OrderID, &req.Mutation)

	if res, ok, err := l.lookup(ctx, venue, key, fp); ok || err != nil {
		return res, err
	}

	v, err, _ := l.group.Do(venue+"/"+key+"/"+fp, func() (any, error) {
		now := l.now()
		o := &models.Order{
			ID:              req.OrderID,
			VenueID:         venue,
			Status:          models.StatusDraft,
			Version:         1,
			OwnerTerminalID: req.Actor.TerminalID,
			OwnerEmployeeID: req.Actor.EmployeeID,
			TableLabel:      req.Mutation.TableLabel,
			Items:           []models.OrderItem{},
			CreatedAt:       now,
			UpdatedAt:       now,
			AppliedKeys:     []models.AppliedKey{{Key: key, Fingerprint: fp, Version: 1, At: now}},
		}
		o.Recalculate()

		stored, err := l.store.Insert(ctx, o)
		if errors.Is(err, ErrOrderExists) {
			existing, gerr := l.store.Get(ctx, req.OrderID)
			if gerr != nil {
				return nil, gerr
			}
			if existing.VenueID == venue {
				if ak := existing.FindAppliedKey(key); ak != nil && ak.Fingerprint == fp {
					return &Result{Order: existing, Version: ak.Version, Replayed: true}, nil
				}
			}
			return nil, apperr.NewConflict(req.OrderID, 0, existing.Version)
		}
		if err != nil {
			return nil, &apperr.CommitError{OrderID: req.OrderID, Err: err}
		}

		l.remember(ctx, venue, key, fp, stored)
		l.notify(ctx, Change{
			After:          stored,
			Kind:           models.MutationCreate,
			Mutation:       &req.Mutation,
			Actor:          req.Actor,
			IdempotencyKey: key,
		})
		return &Result{Order: stored, Version: stored.Version}, nil
	})
	return copyResult(v, err)
}

// Get returns an order visible to the venue.
func (l *Ledger) Get(ctx context.Context, venueID, orderID string) (*models.Order, error) {
	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.VenueID != venueID {
		return nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	return o, nil
}

// List returns the venue's open orders.
func (l *Ledger) List(ctx context.Context, venueID string) ([]models.Order, error) {
	orders, _, err := l.store.ListOpen(ctx, venueID)
	return orders, err
}

// Snapshot returns every open order of the venue and the cursor a terminal
// should pass to ChangesSince next.
func (l *Ledger) Snapshot(ctx context.Context, venueID string) (*models.Snapshot, error) {
	orders, cursor, err := l.store.ListOpen(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("snapshot venue %s: %w", venueID, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.Snapshot{VenueID: venueID, Orders: orders, Cursor: cursor, TakenAt: l.now()}, nil
}

// ChangesSince returns open orders changed after cursor, plus the IDs of
// orders that left the open set.
func (l *Ledger) ChangesSince(ctx context.Context, venueID string, cursor int64) (*models.Delta, error) {
	changed, next, err := l.store.ChangesSince(ctx, venueID, cursor)
	if err != nil {
		return nil, fmt.Errorf("delta venue %s since %d: %w", venueID, cursor, err)
	}
	d := &models.Delta{VenueID: venueID, Orders: []models.Order{}, Cursor: next}
	for i := range changed {
		if changed[i].Status.Open() {
			d.Orders = append(d.Orders, changed[i])
		} else {
			d.Removed = append(d.Removed, changed[i].ID)
		}
	}
	return d, nil
}

// Reopen moves a closed, voided or cancelled order back to sent. It needs
// the order:reopen permission and is rate limited per order.
func (l *Ledger) Reopen(ctx context.Context, req ReopenRequest) (*Result, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr.ToAppError()
	}
	if l.authz == nil {
		return nil, fmt.Errorf("reopen order %s: %w", req.OrderID, apperr.ErrForbidden)
	}
	if err := l.authz.Authorize(ctx, req.Actor, ActionReopen); err != nil {
		return nil, err
	}

	m := &models.Mutation{Kind: models.MutationReopen, Reason: req.Reason}
	w := write{
		orderID:  req.OrderID,
		expected: req.ExpectedVersion,
		key:      req.IdempotencyKey,
		fp:       Fingerprint(req.OrderID, m),
		kind:     models.MutationReopen,
		mutation: m,
		actor:    req.Actor,
	}
	return l.write(ctx, w, func(_ context.Context, o *models.Order) (bool, error) {
		if !o.Status.Terminal() {
			return false, apperr.Validationf("status", "order is %s and does not need reopening", o.Status)
		}

		// A relayed reopen was already rate limited on the edge.
		if req.Actor.Role != models.RoleEdge {
			lim := l.reopenLimiter(o.ID)
			r := lim.ReserveN(l.now(), 1)
			if delay := r.DelayFrom(l.now()); !r.OK() || delay > 0 {
				r.CancelAt(l.now())
				return false, &apperr.TransientError{
					Op:         "reopen",
					Err:        errors.New("order was reopened recently"),
					RetryAfter: delay,
				}
			}
		}

		o.Status = models.StatusSent
		o.ClosedAt = nil
		o.ReopenCount++
		return true, nil
	})
}

func (l *Ledger) reopenLimiter(orderID string) *rate.Limiter {
	if lim, ok := l.reopenLimits.Get(orderID); ok {
		return lim
	}
	every := rate.Inf
	if l.cfg.ReopenInterval > 0 {
		every = rate.Every(l.cfg.ReopenInterval)
	}
	lim, _ := l.reopenLimits.SetIfAbsent(orderID, rate.NewLimiter(every, l.cfg.ReopenBurst))
	return lim
}

// Settle runs capture under the order's row lock and applies the resulting
// payment line in the same write. If capture succeeded but the write could
// not be committed, Settle returns *apperr.CommitError and the caller must
// reverse the capture.
func (l *Ledger) Settle(ctx context.Context, req SettleRequest, capture CaptureFunc) (*Result, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr.ToAppError()
	}

	line := models.PaymentLine{Reference: req.Reference, Amount: req.Amount}
	// Payment is filled in once the capture returns; the edge relays it.
	m := &models.Mutation{Kind: models.MutationSettle}
	w := write{
		orderID:     req.OrderID,
		expected:    req.ExpectedVersion,
		skipVersion: req.ExpectedVersion == 0,
		key:         req.IdempotencyKey,
		fp:          settleFingerprint(req.OrderID, &line),
		kind:        models.MutationSettle,
		mutation:    m,
		actor:       req.Actor,
	}
	return l.write(ctx, w, func(ctx context.Context, o *models.Order) (bool, error) {
		if !o.Status.AcceptsPayment() {
			return false, statusError(o.Status, models.StatusPaid)
		}
		if o.FindPayment(req.Reference) != nil {
			return false, apperr.Validationf("reference", "payment %s is already applied to this order", req.Reference)
		}
		if req.Amount > o.Totals.BalanceDue {
			return false, apperr.Validationf("amount", "amount %d exceeds the balance due of %d", req.Amount, o.Totals.BalanceDue)
		}

		captured, err := capture(ctx, o.Clone())
		if err != nil {
			return false, err
		}
		if captured.Reference == "" {
			captured.Reference = req.Reference
		}
		if captured.State == "" {
			captured.State = models.PaymentLineCaptured
		}
		if captured.CapturedAt.IsZero() {
			captured.CapturedAt = l.now()
		}
		o.Payments = append(o.Payments, captured)
		o.Recalculate()
		m.Payment = &captured

		target := models.StatusPartiallyPaid
		if o.Totals.BalanceDue == 0 {
			target = models.StatusPaid
		}
		if o.Status != target {
			if err := transition(o, target); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// RecordPaymentVoid marks a captured payment line voided and recomputes the
// paid total. Voiding an already voided line is a no-op.
func (l *Ledger) RecordPaymentVoid(ctx context.Context, req PaymentVoidRequest) (*Result, error) {
	m := &models.Mutation{Kind: models.MutationPaymentVoid, Reference: req.Reference}
	w := write{
		orderID:     req.OrderID,
		skipVersion: true,
		key:         req.IdempotencyKey,
		fp:          Fingerprint(req.OrderID, m),
		kind:        models.MutationPaymentVoid,
		mutation:    m,
		actor:       req.Actor,
	}
	return l.write(ctx, w, func(_ context.Context, o *models.Order) (bool, error) {
		p := o.FindPayment(req.Reference)
		if p == nil {
			return false, fmt.Errorf("payment %s on order %s: %w", req.Reference, req.OrderID, apperr.ErrNotFound)
		}
		if p.State == models.PaymentLineVoided {
			return false, nil
		}
		now := l.now()
		p.State = models.PaymentLineVoided
		p.VoidedAt = &now
		o.Recalculate()

		// The processor is the source of truth, so the status follows the
		// money even where the forward-only table has no edge.
		switch o.Status {
		case models.StatusPaid, models.StatusPartiallyPaid:
			if o.Totals.Paid > 0 {
				o.Status = models.StatusPartiallyPaid
			} else {
				o.Status = models.StatusSent
			}
		}
		return true, nil
	})
}

// write is the common shape of a versioned, idempotent order write.
type write struct {
	orderID     string
	expected    int64
	skipVersion bool
	key         string
	fp          string
	kind        models.MutationKind
	mutation    *models.Mutation
	actor       models.Actor
}

type writeFunc func(ctx context.Context, o *models.Order) (changed bool, err error)

func (l *Ledger) write(ctx context.Context, w write, fn writeFunc) (*Result, error) {
	venue := w.actor.VenueID
	if res, ok, err := l.lookup(ctx, venue, w.key, w.fp); ok || err != nil {
		return res, err
	}

	v, err, _ := l.group.Do(venue+"/"+w.key+"/"+w.fp, func() (any, error) {
		var (
			before *models.Order
			replay *models.AppliedKey
		)
		after, err := l.store.Update(ctx, w.orderID, l.cfg.LockTimeout, func(o *models.Order) (bool, error) {
			if o.VenueID != venue {
				return false, fmt.Errorf("order %s: %w", w.orderID, apperr.ErrNotFound)
			}
			if ak := o.FindAppliedKey(w.key); ak != nil {
				if ak.Fingerprint != w.fp {
					return false, errKeyReused
				}
				found := *ak
				replay = &found
				return false, nil
			}
			if !w.skipVersion && o.Version != w.expected {
				return false, apperr.NewConflict(o.ID, w.expected, o.Version)
			}

			before = o.Clone()
			changed, err := fn(ctx, o)
			if err != nil || !changed {
				return false, err
			}
			o.Recalculate()
			l.stamp(o, w.key, w.fp)
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return &Result{Order: after, Version: replay.Version, Replayed: true}, nil
		}
		if before == nil || after.Version == before.Version {
			// fn reported no change.
			return &Result{Order: after, Version: after.Version}, nil
		}

		l.remember(ctx, venue, w.key, w.fp, after)
		l.notify(ctx, Change{
			Before:          before,
			After:           after,
			Kind:            w.kind,
			Mutation:        w.mutation,
			Actor:           w.actor,
			IdempotencyKey:  w.key,
			ExpectedVersion: w.expected,
		})
		return &Result{Order: after, Version: after.Version}, nil
	})
	return copyResult(v, err)
}

var errKeyReused = apperr.Validation("idempotency_key", "idempotency key was already used for a different request")

// stamp bumps the version and records the idempotency key on the order.
func (l *Ledger) stamp(o *models.Order, key, fp string) {
	now := l.now()
	o.Version++
	o.UpdatedAt = now
	o.AppliedKeys = append(o.AppliedKeys, models.AppliedKey{Key: key, Fingerprint: fp, Version: o.Version, At: now})

	if l.cfg.IdempotencyTTL > 0 {
		cutoff := now.Add(-l.cfg.IdempotencyTTL)
		i := 0
		for i < len(o.AppliedKeys)-1 && o.AppliedKeys[i].At.Before(cutoff) {
			i++
		}
		o.AppliedKeys = o.AppliedKeys[i:]
	}
	if n := len(o.AppliedKeys) - l.cfg.AppliedKeyRetention; n > 0 {
		o.AppliedKeys = o.AppliedKeys[n:]
	}
}

// lookup consults the idempotency cache. A cache failure is logged and
// treated as a miss; the keys on the order still catch the replay.
func (l *Ledger) lookup(ctx context.Context, venue, key, fp string) (*Result, bool, error) {
	if l.idem == nil {
		return nil, false, nil
	}
	rec, ok, err := l.idem.Get(ctx, venue, key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("Idempotency cache lookup failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if rec.Fingerprint != fp {
		return nil, false, errKeyReused
	}
	return &Result{Order: rec.Order.Clone(), Version: rec.Order.Version, Replayed: true}, true, nil
}

func (l *Ledger) remember(ctx context.Context, venue, key, fp string, o *models.Order) {
	if l.idem == nil {
		return
	}
	rec := &IdempotencyRecord{Fingerprint: fp, Order: o.Clone(), StoredAt: l.now()}
	if err := l.idem.Put(ctx, venue, key, rec); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Str("idempotency_key", key).
			Msg("Failed to cache idempotency record")
	}
}

func (l *Ledger) notify(ctx context.Context, c Change) {
	if len(l.notifiers) == 0 {
		return
	}
	// Detached from the request so a client hanging up does not drop events.
	nctx := context.WithoutCancel(ctx)
	if l.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(nctx, l.cfg.NotifyTimeout)
		defer cancel()
	}
	for _, n := range l.notifiers {
		n.OrderCommitted(nctx, c)
	}
}

// copyResult gives each singleflight caller its own order copy.
func copyResult(v any, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	r := v.(*Result)
	return &Result{Order: r.Order.Clone(), Version: r.Version, Replayed: r.Replayed}, nil
}

func resultLabel(res *Result, err error) string {
	if err != nil {
		return apperr.Classify(err).String()
	}
	if res.Replayed {
		return "replayed"
	}
	return "applied"
}
