// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/outbox"
	"github.com/tomtom215/tabline/internal/supervisor"
	"github.com/tomtom215/tabline/internal/wal"
)

// EdgeComponents holds the venue-to-cloud relay services.
type EdgeComponents struct {
	Engine   *outbox.Engine
	Relay    *outbox.Relay
	Commands *outbox.CommandListener
}

// outboxConfig fills identity fields the engine needs from the server
// settings when they are not set explicitly.
func outboxConfig(cfg *config.Config) outbox.Config {
	oc := cfg.Outbox.Engine
	if oc.VenueID == "" {
		oc.VenueID = cfg.Server.VenueID
	}
	if oc.TerminalID == "" {
		oc.TerminalID = "edge-" + oc.VenueID
	}
	return oc
}

// InitEdge wires the outbox engine, the ledger relay and the fleet command
// listener into the sync layer. It returns nil on cloud deployments or
// when the outbox is disabled.
func InitEdge(cfg *config.Config, db *wal.DB, bus *eventbus.Bus, auditLog *audit.Logger, policy *backoff.Policy, tree *supervisor.SupervisorTree) *EdgeComponents {
	if !cfg.IsEdge() {
		return nil
	}
	if !cfg.Outbox.Enabled {
		logging.Info().Msg("Outbox disabled (OUTBOX_ENABLED=false); venue will not sync upstream")
		return nil
	}

	oc := outboxConfig(cfg)
	store := outbox.NewStore(db, oc.TerminalID, oc.DeadLetterTTL)
	client := outbox.NewHTTPClient(cfg.Outbox.UpstreamURL, outbox.StaticToken(cfg.Outbox.UpstreamToken), cfg.Outbox.RequestTimeout)
	engine := outbox.NewEngine(oc, store, client, policy)
	engine.SetAuditLogger(auditLog)

	ec := &EdgeComponents{
		Engine:   engine,
		Relay:    outbox.NewRelay(bus, engine, oc.VenueID),
		Commands: outbox.NewCommandListener(bus, engine),
	}

	tree.AddSyncService(ec.Engine)
	tree.AddSyncService(ec.Relay)
	tree.AddSyncService(ec.Commands)

	logging.Info().
		Str("upstream", cfg.Outbox.UpstreamURL).
		Str("venue_id", oc.VenueID).
		Str("terminal_id", oc.TerminalID).
		Int("workers", oc.Workers).
		Msg("Edge sync services added to supervisor tree")
	return ec
}
