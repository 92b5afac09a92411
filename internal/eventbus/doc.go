// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package eventbus carries ledger change signals and fleet commands between
processes.

The bus is a thin layer over Watermill. A single-process deployment uses the
in-memory gochannel transport; setting nats.enabled switches to core NATS
through watermill-nats, optionally served by an embedded nats-server so an
edge box needs no external broker.

Two topics are used:

  - order.changed: published after every committed ledger write. The payload
    is a liveness signal (ids, version, station tags) and never the order
    itself. Subscribers refetch.
  - fleet.commands: one-way operator commands (force_resync, repair_outbox,
    kick) obeyed by outbox engines.

Messages are not redelivered on handler failure. Every consumer of this bus
can recover from a missed message by refetching authoritative state.
*/
package eventbus
