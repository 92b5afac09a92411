// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/validation"
)

// Ledger is the part of the order ledger the payment service writes to.
type Ledger interface {
	Get(ctx context.Context, venueID, orderID string) (*models.Order, error)
	Settle(ctx context.Context, req ledger.SettleRequest, capture ledger.CaptureFunc) (*ledger.Result, error)
	RecordPaymentVoid(ctx context.Context, req ledger.PaymentVoidRequest) (*ledger.Result, error)
}

// Config configures the Service.
type Config struct {
	LockTimeout        time.Duration `koanf:"lock_timeout"`
	CompensateTimeout  time.Duration `koanf:"compensate_timeout"`
	ForwardBatchSize   int           `koanf:"forward_batch_size"`
	SAFForwardInterval time.Duration `koanf:"saf_forward_interval"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:        5 * time.Second,
		CompensateTimeout:  30 * time.Second,
		ForwardBatchSize:   50,
		SAFForwardInterval: time.Minute,
	}
}

// AuthorizeCommand requests an authorization for an order.
type AuthorizeCommand struct {
	OrderID        string       `json:"order_id" validate:"required,max=64"`
	Amount         models.Money `json:"amount" validate:"min=1"`
	IdempotencyKey string       `json:"idempotency_key" validate:"required,max=128,idemkey"`
	AllowOffline   bool         `json:"allow_offline"`
	Actor          models.Actor `json:"-"`
}

// CaptureCommand captures against an authorization and pays the order.
type CaptureCommand struct {
	Reference       string       `json:"reference" validate:"required,max=128"`
	Amount          models.Money `json:"amount" validate:"min=1"`
	ExpectedVersion int64        `json:"expected_version" validate:"min=0"`
	IdempotencyKey  string       `json:"idempotency_key" validate:"required,max=128,idemkey"`
	Actor           models.Actor `json:"-"`
}

// VoidCommand voids an authorization or capture by reference.
type VoidCommand struct {
	Reference      string       `json:"reference" validate:"required,max=128"`
	IdempotencyKey string       `json:"idempotency_key" validate:"required,max=128,idemkey"`
	Actor          models.Actor `json:"-"`
}

// Service runs the payment state machine.
type Service struct {
	cfg    Config
	ledger Ledger
	proc   Processor
	store  *Store
	locks  *ledger.RowLocks
	audit  *audit.Logger
	logger zerolog.Logger
	now    func() time.Time

	safMu     sync.Mutex
	safStatus SAFStatus
}

// NewService creates a payment service.
func NewService(cfg Config, l Ledger, proc Processor, store *Store) *Service {
	def := DefaultConfig()
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}
	if cfg.CompensateTimeout <= 0 {
		cfg.CompensateTimeout = def.CompensateTimeout
	}
	if cfg.ForwardBatchSize <= 0 {
		cfg.ForwardBatchSize = def.ForwardBatchSize
	}
	return &Service{
		cfg:    cfg,
		ledger: l,
		proc:   proc,
		store:  store,
		locks:  ledger.NewRowLocks(),
		logger: logging.WithComponent("payment"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditLogger enables the payment audit trail.
func (s *Service) SetAuditLogger(l *audit.Logger) {
	s.audit = l
}

func (s *Service) logPayment(ctx context.Context, typ audit.EventType, actor models.Actor, rec *Record, amount models.Money, outcome audit.Outcome) {
	if s.audit != nil {
		s.audit.LogPayment(ctx, typ, actor, rec.Reference, rec.OrderID, amount, outcome)
	}
}

func (s *Service) lock(ctx context.Context, reference string) (func(), error) {
	return s.locks.Acquire(ctx, "payment:"+reference, s.cfg.LockTimeout)
}

// Get returns the record for reference.
func (s *Service) Get(ctx context.Context, reference string) (*Record, error) {
	return s.store.Get(ctx, reference)
}

// ForOrder returns every record linked to an order.
func (s *Service) ForOrder(ctx context.Context, orderID string) ([]Record, error) {
	return s.store.List(ctx, func(r *Record) bool { return r.OrderID == orderID })
}

// Authorize asks the processor to hold cmd.Amount. A declined request is
// not an error: the returned record is in state failed. When the processor
// is unreachable and cmd.AllowOffline is set, the record is stored offline
// and queued for forwarding.
func (s *Service) Authorize(ctx context.Context, cmd AuthorizeCommand) (*Record, error) {
	if verr := validation.ValidateStruct(&cmd); verr != nil {
		return nil, verr.ToAppError()
	}
	release, err := s.lock(ctx, "key:"+cmd.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	if rec, err := s.store.ByKey(ctx, cmd.IdempotencyKey); err == nil {
		if rec.OrderID != cmd.OrderID || rec.Requested != cmd.Amount {
			return nil, apperr.Validation("idempotency_key", "idempotency key was already used for another payment")
		}
		return rec, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	order, err := s.ledger.Get(ctx, cmd.Actor.VenueID, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.AcceptsPayment() {
		return nil, apperr.Validationf("order", "order is %s and cannot take a payment", order.Status)
	}
	if cmd.Amount > order.Totals.BalanceDue {
		return nil, apperr.Validationf("amount", "amount %d exceeds the balance due of %d", cmd.Amount, order.Totals.BalanceDue)
	}

	now := s.now()
	rec := &Record{
		OrderID:        cmd.OrderID,
		VenueID:        cmd.Actor.VenueID,
		TerminalID:     cmd.Actor.TerminalID,
		Requested:      cmd.Amount,
		State:          StateNone,
		IdempotencyKey: cmd.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	resp, err := s.proc.Authorize(ctx, AuthorizeRequest{
		IdempotencyKey: cmd.IdempotencyKey,
		OrderID:        cmd.OrderID,
		VenueID:        cmd.Actor.VenueID,
		TerminalID:     cmd.Actor.TerminalID,
		Amount:         cmd.Amount,
	})
	if err != nil {
		if !apperr.IsRetryable(err) || !cmd.AllowOffline {
			return nil, err
		}
		return s.storeOffline(ctx, rec, cmd.Actor, err)
	}

	rec.Reference = resp.Reference
	switch {
	case resp.Outcome == OutcomeDeclined:
		_ = rec.transition(StateFailed, now, "declined by processor")
	case resp.Outcome == OutcomePartial && resp.Approved < cmd.Amount:
		rec.Approved = resp.Approved
		_ = rec.transition(StatePartialAuthorized, now, fmt.Sprintf("partially approved %d of %d", resp.Approved, cmd.Amount))
	default:
		rec.Approved = cmd.Amount
		_ = rec.transition(StateAuthorized, now, "")
	}

	if err := s.store.Create(ctx, rec, false); err != nil {
		// The processor holds funds we could not record; release them.
		if rec.State != StateFailed {
			if verr := s.proc.Void(context.WithoutCancel(ctx), rec.Reference); verr != nil {
				s.logger.Error().Err(verr).Str("reference", rec.Reference).Msg("Failed to release authorization that could not be recorded")
			}
		}
		return nil, fmt.Errorf("record authorization: %w", err)
	}

	outcome := audit.OutcomeSuccess
	if rec.State == StateFailed {
		outcome = audit.OutcomeFailure
	}
	s.logPayment(ctx, audit.EventTypePaymentAuthorized, cmd.Actor, rec, rec.Approved, outcome)
	s.logger.Info().
		Str("reference", rec.Reference).
		Str("order_id", rec.OrderID).
		Str("state", string(rec.State)).
		Int64("requested", int64(rec.Requested)).
		Int64("approved", int64(rec.Approved)).
		Msg("Authorization recorded")
	return rec, nil
}

func (s *Service) storeOffline(ctx context.Context, rec *Record, actor models.Actor, cause error) (*Record, error) {
	rec.Reference = "saf-" + uuid.NewString()
	rec.Offline = true
	rec.Approved = rec.Requested
	_ = rec.transition(StateStoredOffline, s.now(), "processor unreachable: "+cause.Error())

	if err := s.store.Create(ctx, rec, true); err != nil {
		return nil, fmt.Errorf("store offline payment: %w", err)
	}
	s.logPayment(ctx, audit.EventTypePaymentStoredOffline, actor, rec, rec.Requested, audit.OutcomeUnknown)
	s.logger.Warn().Err(cause).
		Str("reference", rec.Reference).
		Str("order_id", rec.OrderID).
		Int("saf_depth", s.store.Depth()).
		Msg("Processor unreachable, payment stored offline")
	return rec, nil
}

// Capture takes cmd.Amount against an authorization and applies the payment
// to the order in one ledger write. See the package documentation for the
// failure paths.
func (s *Service) Capture(ctx context.Context, cmd CaptureCommand) (*Record, error) {
	if verr := validation.ValidateStruct(&cmd); verr != nil {
		return nil, verr.ToAppError()
	}
	release, err := s.lock(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.store.Get(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}
	if rec.CaptureKey == cmd.IdempotencyKey && (rec.State == StateCaptured || rec.State == StateSettled) {
		return rec, nil
	}
	return s.capture(ctx, rec, cmd)
}

// capture runs with the record lock held.
func (s *Service) capture(ctx context.Context, rec *Record, cmd CaptureCommand) (*Record, error) {
	switch {
	case rec.State == StateStoredOffline:
		return nil, apperr.Validation("reference", "payment is stored offline and will be captured when it is forwarded")
	case !rec.State.Capturable():
		return nil, apperr.Validationf("reference", "payment is %s and cannot be captured", rec.State)
	case cmd.Amount > rec.Remaining():
		return nil, apperr.Validationf("amount", "amount %d exceeds the authorized amount remaining (%d)", cmd.Amount, rec.Remaining())
	}

	var processorCaptured bool
	res, err := s.ledger.Settle(ctx, ledger.SettleRequest{
		OrderID:         rec.OrderID,
		ExpectedVersion: cmd.ExpectedVersion,
		IdempotencyKey:  cmd.IdempotencyKey,
		Reference:       rec.Reference,
		Amount:          cmd.Amount,
		Actor:           cmd.Actor,
	}, func(ctx context.Context, _ *models.Order) (models.PaymentLine, error) {
		if err := s.proc.Capture(ctx, rec.processorRef(), cmd.Amount); err != nil {
			return models.PaymentLine{}, err
		}
		processorCaptured = true
		return models.PaymentLine{
			Reference:  rec.Reference,
			Amount:     cmd.Amount,
			State:      models.PaymentLineCaptured,
			Offline:    rec.Offline,
			CapturedAt: s.now(),
		}, nil
	})
	if err != nil {
		if processorCaptured {
			return nil, s.compensate(ctx, rec, cmd, err)
		}
		return nil, err
	}

	rec.Captured += cmd.Amount
	rec.CaptureKey = cmd.IdempotencyKey
	note := fmt.Sprintf("captured %d, order version %d", cmd.Amount, res.Version)
	if res.Replayed {
		note = "capture already applied to order"
	}
	if err := rec.transition(StateCaptured, s.now(), note); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, rec); err != nil {
		// The ledger is authoritative for the paid amount; Reconcile repairs
		// the record from the processor.
		return nil, fmt.Errorf("save captured payment %s: %w", rec.Reference, err)
	}

	s.logPayment(ctx, audit.EventTypePaymentCaptured, cmd.Actor, rec, cmd.Amount, audit.OutcomeSuccess)
	s.logger.Info().
		Str("reference", rec.Reference).
		Str("order_id", rec.OrderID).
		Int64("amount", int64(cmd.Amount)).
		Int64("version", res.Version).
		Msg("Payment captured")
	return rec, nil
}

// ReversedError reports a capture that was voided at the processor because
// the order could not be updated. No money moved; the cashier may retry.
type ReversedError struct {
	Reference string
	OrderID   string
	Err       error
}

func (e *ReversedError) Error() string {
	return fmt.Sprintf("payment %s was reversed because the order could not be updated: %v", e.Reference, e.Err)
}

func (e *ReversedError) Unwrap() error {
	return e.Err
}

// compensate reverses a processor capture whose ledger write failed.
func (s *Service) compensate(ctx context.Context, rec *Record, cmd CaptureCommand, cause error) error {
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensateTimeout)
	defer cancel()

	voidErr := s.proc.Void(vctx, rec.processorRef())
	metrics.RecordCompensatingVoid(voidErr)

	now := s.now()
	if voidErr == nil {
		_ = rec.transition(StateVoided, now, "ledger write failed, capture reversed: "+cause.Error())
		if err := s.store.Save(vctx, rec); err != nil {
			s.logger.Error().Err(err).Str("reference", rec.Reference).Msg("Failed to save compensated payment")
		}
		s.logPayment(ctx, audit.EventTypePaymentVoided, cmd.Actor, rec, cmd.Amount, audit.OutcomeSuccess)
		s.logger.Warn().Err(cause).
			Str("reference", rec.Reference).
			Str("order_id", rec.OrderID).
			Msg("Order could not be updated; capture was voided at the processor")
		return &ReversedError{Reference: rec.Reference, OrderID: rec.OrderID, Err: cause}
	}

	// Money is held at the processor with no paid order to show for it.
	rec.Captured += cmd.Amount
	rec.Irreconcilable = true
	rec.force(StateCaptured, now, "ledger write and compensating void both failed")
	if err := s.store.Save(vctx, rec); err != nil {
		s.logger.Error().Err(err).Str("reference", rec.Reference).Msg("Failed to save irreconcilable payment")
	}

	joined := errors.Join(cause, voidErr)
	s.logger.Error().
		AnErr("commit_error", cause).
		AnErr("void_error", voidErr).
		Str("reference", rec.Reference).
		Str("processor_reference", rec.processorRef()).
		Str("order_id", rec.OrderID).
		Str("venue_id", rec.VenueID).
		Str("terminal_id", rec.TerminalID).
		Int64("amount", int64(cmd.Amount)).
		Msg("Payment captured but neither recorded nor reversed; manual reconciliation required")
	if s.audit != nil {
		s.audit.LogIrreconcilable(ctx, cmd.Actor, rec.Reference, rec.OrderID, cmd.Amount, joined)
	}
	return apperr.Fatal("capture", joined, map[string]any{
		"reference":           rec.Reference,
		"processor_reference": rec.processorRef(),
		"order_id":            rec.OrderID,
		"venue_id":            rec.VenueID,
		"amount":              cmd.Amount,
	})
}

// Void releases an authorization or reverses a capture. Voiding an already
// voided record is a no-op success.
func (s *Service) Void(ctx context.Context, cmd VoidCommand) (*Record, error) {
	if verr := validation.ValidateStruct(&cmd); verr != nil {
		return nil, verr.ToAppError()
	}
	release, err := s.lock(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.store.Get(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}

	switch rec.State {
	case StateVoided:
		if rec.PendingLedgerVoid {
			return s.voidLedger(ctx, rec, cmd)
		}
		return rec, nil
	case StateFailed:
		return nil, apperr.Validation("reference", "payment was declined; there is nothing to void")
	case StateSettled:
		return nil, apperr.Validation("reference", "the batch holding this payment is closed; issue a refund instead")
	case StateStoredOffline:
		if err := s.store.dequeueReference(rec.Reference); err != nil {
			return nil, err
		}
		_ = rec.transition(StateVoided, s.now(), "voided before forwarding")
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, err
		}
		s.logPayment(ctx, audit.EventTypePaymentVoided, cmd.Actor, rec, rec.Requested, audit.OutcomeSuccess)
		return rec, nil
	}

	if err := s.proc.Void(ctx, rec.processorRef()); err != nil {
		return nil, err
	}
	wasCaptured := rec.State == StateCaptured
	if err := rec.transition(StateVoided, s.now(), ""); err != nil {
		return nil, err
	}
	rec.PendingLedgerVoid = wasCaptured
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.logPayment(ctx, audit.EventTypePaymentVoided, cmd.Actor, rec, rec.Captured, audit.OutcomeSuccess)

	if wasCaptured {
		return s.voidLedger(ctx, rec, cmd)
	}
	return rec, nil
}

// voidLedger removes a voided capture from the order.
func (s *Service) voidLedger(ctx context.Context, rec *Record, cmd VoidCommand) (*Record, error) {
	_, err := s.ledger.RecordPaymentVoid(ctx, ledger.PaymentVoidRequest{
		OrderID:        rec.OrderID,
		Reference:      rec.Reference,
		IdempotencyKey: cmd.IdempotencyKey,
		Actor:          cmd.Actor,
	})
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("payment %s is voided at the processor but the order is not updated yet: %w", rec.Reference, err)
	}
	rec.PendingLedgerVoid = false
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reconcile brings the record in line with the processor, which always wins.
func (s *Service) Reconcile(ctx context.Context, reference string, actor models.Actor) (*Record, error) {
	release, err := s.lock(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.store.Get(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.State == StateStoredOffline {
		// Not at the processor yet.
		return rec, nil
	}

	st, err := s.proc.Query(ctx, rec.processorRef())
	if err != nil {
		return nil, err
	}

	target := rec.State
	switch st.State {
	case ProcessorAuthorized:
		target = StateAuthorized
		if st.Approved < rec.Requested {
			target = StatePartialAuthorized
		}
	case ProcessorCaptured:
		if rec.State != StateSettled {
			target = StateCaptured
		}
	case ProcessorVoided:
		target = StateVoided
	case ProcessorDeclined:
		target = StateFailed
	}

	changed := target != rec.State || st.Approved != rec.Approved || st.Captured != rec.Captured
	if !changed && !rec.Irreconcilable {
		return rec, nil
	}

	before := rec.State
	capturedBefore := rec.Captured
	rec.Approved = st.Approved
	rec.Captured = st.Captured
	if target != before {
		rec.force(target, s.now(), fmt.Sprintf("reconciled with processor (%s)", st.State))
	}

	// Bring the order in line too.
	switch {
	case target == StateCaptured && (rec.Irreconcilable || (capturedBefore == 0 && st.Captured > 0)):
		if err := s.settleFromProcessor(ctx, rec, actor); err != nil {
			return nil, err
		}
	case target == StateVoided && (before == StateCaptured || before == StateSettled):
		rec.PendingLedgerVoid = true
	}
	rec.Irreconcilable = false

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	if rec.PendingLedgerVoid {
		if _, err := s.voidLedger(ctx, rec, VoidCommand{Reference: rec.Reference, IdempotencyKey: "reconcile-void-" + rec.Reference, Actor: actor}); err != nil {
			return nil, err
		}
	}

	s.logPayment(ctx, audit.EventTypePaymentReconciled, actor, rec, rec.Captured, audit.OutcomeSuccess)
	s.logger.Info().
		Str("reference", rec.Reference).
		Str("from", string(before)).
		Str("to", string(rec.State)).
		Msg("Payment reconciled with processor")
	return rec, nil
}

// settleFromProcessor applies a capture the processor has but the order
// does not.
func (s *Service) settleFromProcessor(ctx context.Context, rec *Record, actor models.Actor) error {
	order, err := s.ledger.Get(ctx, rec.VenueID, rec.OrderID)
	if err != nil {
		return err
	}
	if order.FindPayment(rec.Reference) != nil {
		return nil
	}
	_, err = s.ledger.Settle(ctx, ledger.SettleRequest{
		OrderID:        rec.OrderID,
		IdempotencyKey: "reconcile-" + rec.Reference,
		Reference:      rec.Reference,
		Amount:         rec.Captured,
		Actor:          actor,
	}, func(context.Context, *models.Order) (models.PaymentLine, error) {
		return models.PaymentLine{
			Reference:  rec.Reference,
			Amount:     rec.Captured,
			State:      models.PaymentLineCaptured,
			Offline:    rec.Offline,
			CapturedAt: s.now(),
		}, nil
	})
	return err
}
