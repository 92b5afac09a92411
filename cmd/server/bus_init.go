// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/supervisor"
)

// busConfig maps NATS settings onto the event bus configuration.
func busConfig(cfg *config.Config) eventbus.Config {
	bc := eventbus.DefaultConfig()
	bc.NATS = cfg.NATS.Enabled
	bc.Embedded = cfg.NATS.Enabled && cfg.NATS.Embedded
	if cfg.NATS.URL != "" {
		bc.URL = cfg.NATS.URL
	}
	if cfg.NATS.Host != "" {
		bc.Server.Host = cfg.NATS.Host
	}
	if cfg.NATS.Port > 0 {
		bc.Server.Port = cfg.NATS.Port
	}
	if cfg.NATS.MaxPayload > 0 {
		bc.Server.MaxPayload = cfg.NATS.MaxPayload
	}
	return bc
}

// InitEventBus creates the bus that carries order changes and fleet
// commands. With NATS disabled it is an in-process channel; with an
// embedded server the server joins the messaging layer so the supervisor
// shuts it down after its subscribers.
func InitEventBus(cfg *config.Config, tree *supervisor.SupervisorTree) (*eventbus.Bus, error) {
	bc := busConfig(cfg)

	switch {
	case !bc.NATS:
		logging.Info().Msg("Event bus: in-process (NATS disabled)")
	case bc.Embedded:
		srv, err := eventbus.NewEmbeddedServer(bc.Server)
		if err != nil {
			return nil, err
		}
		bc.URL = srv.ClientURL()
		tree.AddMessagingService(srv)
		logging.Info().Str("url", bc.URL).Msg("Event bus: embedded NATS")
	default:
		logging.Info().Str("url", bc.URL).Msg("Event bus: external NATS")
	}

	return eventbus.New(bc)
}
