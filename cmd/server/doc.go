// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package main is the entry point for the Tabline server.

Tabline keeps restaurant orders consistent between the terminals on a venue
floor, the venue's edge server and the cloud. The same binary runs in two
roles selected by SERVER_ROLE:

  - cloud: authoritative ledger for terminals that talk to it directly,
    outbox intake for edge servers, fleet command publisher.
  - edge: venue-local ledger that keeps the floor running offline and
    relays every committed mutation upstream through a durable outbox.

# Application Architecture

Services run under a Suture v4 supervisor tree:

	RootSupervisor ("tabline")
	├── DataSupervisor ("data-layer")
	│   ├── Side-effect queue (audit writes, kitchen tickets)
	│   └── Scheduler (SAF forward, idempotency prune, audit cleanup, GC)
	├── SyncSupervisor ("sync-layer")          edge only
	│   ├── Outbox engine
	│   ├── Ledger relay
	│   └── Fleet command listener
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Embedded NATS server (optional)
	│   ├── WebSocket hub
	│   └── Fan-out bridge
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Storage: BadgerDB, order store (memory or PostgreSQL), idempotency
    store (memory or Redis), menu catalog
 4. Authorization: Casbin policy and the audit logger
 5. Ledger and payment service
 6. Event bus: Watermill over Go channels or NATS
 7. Fan-out and WebSocket hub
 8. Edge sync services (edge role only)
 9. Authentication: JWT and the terminal registry
 10. Scheduler and HTTP server

# Configuration

Priority: environment variables > config file > defaults.

	SERVER_ROLE=edge             # cloud or edge
	VENUE_ID=venue-12            # required for edge
	STORAGE_PATH=/data/tabline
	AUTH_MODE=jwt                # jwt or none (development only)
	JWT_SECRET=...               # 32+ characters
	OUTBOX_ENABLED=true
	OUTBOX_UPSTREAM_URL=https://cloud.example.com
	NATS_ENABLED=true
	NATS_EMBEDDED=true
	PAYMENT_PROCESSOR=http       # simulated or http

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the API
layer first, then messaging, sync and data, and reports any service that
failed to stop within SHUTDOWN_TIMEOUT.
*/
package main
