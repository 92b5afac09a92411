// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package supervisor runs tabline's long-running services under a suture v4
tree with Erlang-style restart and backoff.

# Layout

	tabline
	├── data-layer
	│   ├── tasks.Queue           side effects (kitchen tickets, audit writes)
	│   └── SchedulerService      gocron maintenance jobs
	├── sync-layer                edge role only
	│   ├── outbox.Engine         drains the local outbox to the cloud
	│   ├── outbox.Relay          queues ledger commits for the cloud
	│   └── outbox.CommandListener fleet commands from operators
	├── messaging-layer
	│   ├── eventbus.EmbeddedServer (nats.embedded)
	│   ├── fanout.Bridge         order.changed to websocket subscribers
	│   └── websocket.Hub
	└── api-layer
	    └── HTTPServerService

Each layer counts failures on its own, so an outbox engine stuck in backoff
does not restart the HTTP server, and terminals keep writing to the ledger
while the cloud is unreachable.

# Logging

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog using the zerolog-backed slog handler from internal/logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(srv, addr, cfg.Server.ShutdownTimeout))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}
*/
package supervisor
