// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/models"
)

// SimulatedProcessor is an in-process processor for development and demo
// venues. Amounts above PartialLimit are partially approved, amounts above
// DeclineLimit are declined, and SetOnline(false) makes every call fail as
// unreachable.
type SimulatedProcessor struct {
	PartialLimit models.Money
	DeclineLimit models.Money

	mu             sync.Mutex
	offline        bool
	failVoids      bool
	txns           map[string]*ProcessorStatus
	keys           map[string]AuthorizeResponse
	authorizations int
}

// NewSimulatedProcessor creates an online processor with no limits.
func NewSimulatedProcessor() *SimulatedProcessor {
	return &SimulatedProcessor{
		txns: make(map[string]*ProcessorStatus),
		keys: make(map[string]AuthorizeResponse),
	}
}

// SetOnline toggles reachability.
func (p *SimulatedProcessor) SetOnline(online bool) {
	p.mu.Lock()
	p.offline = !online
	p.mu.Unlock()
}

// SetFailVoids makes Void fail as unreachable while the rest keeps working.
func (p *SimulatedProcessor) SetFailVoids(fail bool) {
	p.mu.Lock()
	p.failVoids = fail
	p.mu.Unlock()
}

// Authorizations returns how many distinct authorizations were made.
func (p *SimulatedProcessor) Authorizations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorizations
}

func (p *SimulatedProcessor) unreachable(op string) error {
	if p.offline {
		return apperr.Transient(op, apperr.ErrUnavailable)
	}
	return nil
}

// Authorize implements Processor.
func (p *SimulatedProcessor) Authorize(_ context.Context, req AuthorizeRequest) (AuthorizeResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unreachable("authorize"); err != nil {
		return AuthorizeResponse{}, err
	}
	if prev, ok := p.keys[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prev, nil
	}

	p.authorizations++
	resp := AuthorizeResponse{Reference: "sim-" + uuid.NewString(), Outcome: OutcomeApproved, Approved: req.Amount}
	switch {
	case p.DeclineLimit > 0 && req.Amount > p.DeclineLimit:
		resp = AuthorizeResponse{Reference: resp.Reference, Outcome: OutcomeDeclined}
	case p.PartialLimit > 0 && req.Amount > p.PartialLimit:
		resp.Outcome = OutcomePartial
		resp.Approved = p.PartialLimit
	}

	st := &ProcessorStatus{Reference: resp.Reference, State: ProcessorAuthorized, Approved: resp.Approved}
	if resp.Outcome == OutcomeDeclined {
		st.State = ProcessorDeclined
	}
	p.txns[resp.Reference] = st
	p.keys[req.IdempotencyKey] = resp
	return resp, nil
}

// Capture implements Processor.
func (p *SimulatedProcessor) Capture(_ context.Context, reference string, amount models.Money) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unreachable("capture"); err != nil {
		return err
	}
	st, ok := p.txns[reference]
	if !ok {
		return fmt.Errorf("capture %s: %w", reference, apperr.ErrNotFound)
	}
	switch {
	case st.State == ProcessorCaptured && st.Captured == amount:
		return nil
	case st.State != ProcessorAuthorized:
		return apperr.Validationf("reference", "transaction is %s", st.State)
	case amount > st.Approved:
		return apperr.Validationf("amount", "capture %d exceeds approved %d", amount, st.Approved)
	}
	st.State = ProcessorCaptured
	st.Captured = amount
	return nil
}

// Void implements Processor.
func (p *SimulatedProcessor) Void(_ context.Context, reference string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unreachable("void"); err != nil {
		return err
	}
	if p.failVoids {
		return apperr.Transient("void", apperr.ErrUnavailable)
	}
	st, ok := p.txns[reference]
	if !ok {
		return fmt.Errorf("void %s: %w", reference, apperr.ErrNotFound)
	}
	st.State = ProcessorVoided
	return nil
}

// Query implements Processor.
func (p *SimulatedProcessor) Query(_ context.Context, reference string) (ProcessorStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unreachable("query"); err != nil {
		return ProcessorStatus{}, err
	}
	st, ok := p.txns[reference]
	if !ok {
		return ProcessorStatus{}, fmt.Errorf("query %s: %w", reference, apperr.ErrNotFound)
	}
	return *st, nil
}

// SetState overrides what the processor reports for reference, as if it
// changed out of band (e.g. a void from the processor's own console).
func (p *SimulatedProcessor) SetState(reference string, state ProcessorState, captured models.Money) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.txns[reference]; ok {
		st.State = state
		st.Captured = captured
	}
}
