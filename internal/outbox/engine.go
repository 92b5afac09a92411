// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// Config configures an Engine.
type Config struct {
	TerminalID    string        `koanf:"terminal_id"`
	VenueID       string        `koanf:"venue_id"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	Workers       int           `koanf:"workers"`
	MaxRebases    int           `koanf:"max_rebases"`
	DeadLetterTTL time.Duration `koanf:"dead_letter_ttl"`
}

// DefaultConfig returns a 2s poll, 4 workers and 5 rebases per entry.
func DefaultConfig() Config {
	return Config{
		PollInterval:  2 * time.Second,
		Workers:       4,
		MaxRebases:    5,
		DeadLetterTTL: defaultDLQTTL,
	}
}

// Engine drains the outbox to an upstream Client.
type Engine struct {
	cfg    Config
	store  *Store
	client Client
	policy *backoff.Policy
	syncer *Syncer
	audit  *audit.Logger

	kick   chan struct{}
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an engine. policy is shared with the payment adapter.
func NewEngine(cfg Config, store *Store, client Client, policy *backoff.Policy) *Engine {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxRebases <= 0 {
		cfg.MaxRebases = def.MaxRebases
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		client: client,
		policy: policy,
		syncer: NewSyncer(store, client),
		kick:   make(chan struct{}, 1),
		logger: logging.WithComponent("outbox").With().Str("terminal_id", cfg.TerminalID).Logger(),
		now:    time.Now,
	}
}

// SetAuditLogger enables audit events for dead letters and requeues.
func (e *Engine) SetAuditLogger(l *audit.Logger) {
	e.audit = l
}

// Store returns the engine's durable store.
func (e *Engine) Store() *Store {
	return e.store
}

// Syncer returns the bootstrap/delta syncer sharing the engine's cache.
func (e *Engine) Syncer() *Syncer {
	return e.syncer
}

// Enqueue durably queues a mutation and wakes the dispatch loop.
func (e *Engine) Enqueue(ctx context.Context, sub Submission) (*Entry, error) {
	if verr := validation.ValidateStruct(&sub); verr != nil {
		return nil, verr.ToAppError()
	}
	entry, err := e.store.Enqueue(ctx, sub)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("order_id", entry.OrderID).
		Uint64("seq", entry.Sequence).
		Str("kind", string(entry.Mutation.Kind)).
		Msg("Mutation queued")
	e.Kick()
	return entry, nil
}

// Kick wakes the dispatch loop without waiting for the next poll.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Serve repairs entries stuck in sending, then dispatches until ctx is
// cancelled. Implements suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	if n, err := e.store.RepairSending(ctx); err != nil {
		return fmt.Errorf("repair outbox: %w", err)
	} else if n > 0 {
		e.logger.Warn().Int("entries", n).Msg("Reset entries left in sending by an earlier run")
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := e.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("Outbox dispatch failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-e.kick:
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (e *Engine) String() string {
	return "outbox-engine"
}

// DispatchOnce drains every order whose head entry is due. Orders run
// concurrently up to Workers; entries within one order run strictly in
// sequence.
func (e *Engine) DispatchOnce(ctx context.Context) error {
	heads, err := e.store.Heads(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, head := range heads {
		if !head.Due(now) {
			continue
		}
		orderID := head.OrderID
		g.Go(func() error {
			return e.drainOrder(gctx, orderID)
		})
	}
	return g.Wait()
}

func (e *Engine) drainOrder(ctx context.Context, orderID string) error {
	for ctx.Err() == nil {
		head, err := e.store.Head(ctx, orderID)
		if errors.Is(err, ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !head.Due(e.now()) {
			return nil
		}
		next, err := e.dispatch(ctx, head)
		if err != nil || !next {
			return err
		}
	}
	return nil
}

// dispatch submits one head entry. It reports whether the order's queue
// may advance immediately.
func (e *Engine) dispatch(ctx context.Context, entry *Entry) (bool, error) {
	entry.Status = StatusSending
	if err := e.store.Save(ctx, entry); err != nil {
		if errors.Is(err, ErrStaleEntry) {
			return false, nil
		}
		return false, err
	}

	start := e.now()
	result, err := e.submit(ctx, entry)
	elapsed := e.now().Sub(start)

	if err == nil {
		if err := e.store.Confirm(ctx, entry, result.Order); err != nil {
			return false, fmt.Errorf("confirm entry %s: %w", entry.ID, err)
		}
		metrics.RecordOutboxDispatch("confirmed", elapsed)
		e.logger.Debug().
			Str("order_id", entry.OrderID).
			Uint64("seq", entry.Sequence).
			Bool("replayed", result.Replayed).
			Msg("Entry confirmed")
		return true, nil
	}

	if ctx.Err() != nil {
		// Shutting down mid-flight. Leave the entry for the next run.
		entry.Status = StatusPending
		return false, e.store.Save(context.WithoutCancel(ctx), entry)
	}

	switch class := apperr.Classify(err); class {
	case apperr.ClassConflict:
		return e.rebase(ctx, entry, err, elapsed)
	case apperr.ClassValidation, apperr.ClassFatal, apperr.ClassNotFound, apperr.ClassForbidden:
		metrics.RecordOutboxDispatch(class.String(), elapsed)
		return true, e.deadLetter(ctx, entry, class.String(), err.Error())
	default:
		return false, e.retryLater(ctx, entry, err, elapsed)
	}
}

func (e *Engine) submit(ctx context.Context, entry *Entry) (*models.SubmissionResult, error) {
	resp, err := e.client.Submit(ctx, models.OutboxBatch{
		TerminalID: e.cfg.TerminalID,
		Entries:    []models.OutboxSubmission{entry.Submission()},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != 1 || resp.Results[0].EntryID != entry.ID {
		return nil, apperr.Transient("submit", errors.New("outbox response does not match the submitted entry"))
	}

	r := resp.Results[0]
	switch r.Status {
	case models.SubmissionConfirmed:
		return &r, nil
	case models.SubmissionConflict:
		return nil, apperr.NewConflict(entry.OrderID, entry.ExpectedVersion, r.CurrentVersion)
	case models.SubmissionRejected:
		return nil, apperr.Validation("", r.Error)
	case models.SubmissionFatal:
		return nil, apperr.Fatal("submit", errors.New(r.Error), map[string]any{
			"entry_id": entry.ID,
			"order_id": entry.OrderID,
		})
	default:
		return nil, apperr.Transient("submit", fmt.Errorf("%s: %s", r.Status, r.Error))
	}
}

// rebase refetches the order and retries the entry against the current
// version. Rebases do not count as attempts until MaxRebases is reached.
func (e *Engine) rebase(ctx context.Context, entry *Entry, cause error, elapsed time.Duration) (bool, error) {
	metrics.RecordOutboxDispatch("conflict", elapsed)

	if entry.Rebases >= e.cfg.MaxRebases {
		entry.Rebases = 0
		return false, e.retryLater(ctx, entry, cause, 0)
	}

	order, err := e.client.FetchOrder(ctx, entry.OrderID)
	if err != nil {
		if apperr.IsRetryable(err) || apperr.Classify(err) == apperr.ClassUnknown {
			return false, e.retryLater(ctx, entry, err, 0)
		}
		return true, e.deadLetter(ctx, entry, apperr.Classify(err).String(), err.Error())
	}
	if _, err := e.store.UpsertOrder(ctx, order); err != nil {
		return false, err
	}

	e.logger.Info().
		Str("order_id", entry.OrderID).
		Uint64("seq", entry.Sequence).
		Int64("from_version", entry.ExpectedVersion).
		Int64("version", order.Version).
		Msg("Rebasing entry onto current version")

	entry.ExpectedVersion = order.Version
	entry.Rebases++
	entry.Status = StatusPending
	entry.LastError = cause.Error()
	entry.ErrorClass = apperr.ClassConflict.String()
	entry.NextAttemptAt = e.now().UTC()
	return true, e.store.Save(ctx, entry)
}

func (e *Engine) retryLater(ctx context.Context, entry *Entry, cause error, elapsed time.Duration) error {
	entry.Attempts++
	entry.LastError = cause.Error()
	entry.ErrorClass = apperr.ClassTransient.String()

	if e.policy.Exhausted(entry.Attempts) {
		metrics.RecordOutboxDispatch("exhausted", elapsed)
		return e.deadLetter(ctx, entry, entry.ErrorClass,
			fmt.Sprintf("gave up after %d attempts: %v", entry.Attempts, cause))
	}

	delay := e.policy.Delay(entry.Attempts)
	var te *apperr.TransientError
	if errors.As(cause, &te) && te.RetryAfter > delay {
		delay = te.RetryAfter
	}
	entry.Status = StatusFailed
	entry.NextAttemptAt = e.now().UTC().Add(delay)
	metrics.RecordOutboxDispatch("retry", elapsed)

	e.logger.Warn().Err(cause).
		Str("order_id", entry.OrderID).
		Uint64("seq", entry.Sequence).
		Int("attempts", entry.Attempts).
		Dur("retry_in", delay).
		Msg("Entry submission failed, will retry")
	return e.store.Save(ctx, entry)
}

func (e *Engine) deadLetter(ctx context.Context, entry *Entry, class, reason string) error {
	if err := e.store.DeadLetter(ctx, entry, class, reason); err != nil {
		return fmt.Errorf("dead-letter entry %s: %w", entry.ID, err)
	}
	e.logger.Error().
		Str("order_id", entry.OrderID).
		Uint64("seq", entry.Sequence).
		Str("entry_id", entry.ID).
		Str("error_class", class).
		Str("reason", reason).
		Msg("Entry dead-lettered")
	if e.audit != nil {
		e.audit.LogDeadLetter(ctx, e.cfg.VenueID, e.cfg.TerminalID, entry.ID, entry.OrderID, reason)
	}
	return nil
}

// DeadLetters lists entries awaiting an operator.
func (e *Engine) DeadLetters(ctx context.Context) ([]Entry, error) {
	return e.store.DeadLetters(ctx)
}

// Requeue moves one dead letter back to the tail of its order's queue.
func (e *Engine) Requeue(ctx context.Context, id string) (*Entry, error) {
	entry, err := e.store.Requeue(ctx, id)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, fmt.Errorf("dead letter %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("entry_id", id).Str("order_id", entry.OrderID).Uint64("seq", entry.Sequence).Msg("Dead letter requeued")
	if e.audit != nil {
		e.audit.LogRequeued(ctx, e.cfg.VenueID, e.cfg.TerminalID, id)
	}
	e.Kick()
	return entry, nil
}

// Repair resets stuck entries and requeues every dead letter.
func (e *Engine) Repair(ctx context.Context) (repaired, requeued int, err error) {
	repaired, err = e.store.RepairSending(ctx)
	if err != nil {
		return repaired, 0, err
	}
	dead, err := e.store.DeadLetters(ctx)
	if err != nil {
		return repaired, 0, err
	}
	for i := range dead {
		if _, err := e.Requeue(ctx, dead[i].ID); err != nil {
			return repaired, requeued, err
		}
		requeued++
	}
	return repaired, requeued, nil
}

// HandleCommand obeys a fleet command addressed to this engine.
func (e *Engine) HandleCommand(ctx context.Context, cmd *models.FleetCommand) error {
	if !cmd.Addresses(e.cfg.VenueID, e.cfg.TerminalID) {
		return nil
	}
	log := e.logger.Info().Str("command_id", cmd.ID).Str("command", string(cmd.Type))

	switch cmd.Type {
	case models.CommandForceResync:
		log.Msg("Forced resync requested")
		return e.syncer.Bootstrap(ctx)
	case models.CommandRepairOutbox:
		repaired, requeued, err := e.Repair(ctx)
		if err != nil {
			return err
		}
		log.Int("repaired", repaired).Int("requeued", requeued).Msg("Outbox repaired")
		e.Kick()
		return nil
	case models.CommandKick:
		log.Msg("Dispatch kicked")
		e.Kick()
		return nil
	default:
		log.Msg("Ignoring unknown fleet command")
		return nil
	}
}
