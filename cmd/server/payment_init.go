// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"fmt"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/payment"
	"github.com/tomtom215/tabline/internal/wal"
)

// Payment processor kinds.
const (
	processorSimulated = "simulated"
	processorHTTP      = "http"
)

// newProcessor builds the configured processor adapter behind the
// circuit breaker.
func newProcessor(cfg config.PaymentConfig, policy *backoff.Policy) (payment.Processor, error) {
	var next payment.Processor
	switch cfg.Processor {
	case processorSimulated, "":
		next = payment.NewSimulatedProcessor()
	case processorHTTP:
		next = payment.NewHTTPProcessor(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown payment processor %q", cfg.Processor)
	}
	return payment.NewResilientProcessor(next, policy, cfg.Breaker), nil
}

// InitPayments creates the payment service over the ledger and BadgerDB.
func InitPayments(cfg *config.Config, l *ledger.Ledger, db *wal.DB, auditLog *audit.Logger, policy *backoff.Policy) (*payment.Service, error) {
	proc, err := newProcessor(cfg.Payment, policy)
	if err != nil {
		return nil, err
	}
	svc := payment.NewService(cfg.Payment.Service, l, proc, payment.NewStore(db))
	svc.SetAuditLogger(auditLog)

	status := svc.Status()
	logging.Info().
		Str("processor", cfg.Payment.Processor).
		Int("saf_depth", status.Depth).
		Msg("Payment service initialized")
	return svc, nil
}
