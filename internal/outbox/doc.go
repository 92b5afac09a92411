// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package outbox is the offline-capable mutation queue that runs on terminals
and edge servers.

A mutation is first written to a local Badger store and only then sent to
the ledger. While the ledger is unreachable the queue keeps growing; when it
comes back the Engine drains it.

Ordering:

Entries for one order carry a per-order sequence assigned in the same
transaction as the write, and the key layout

	entry:{hex(order)}:{seq:%020d}

makes key order queue order. The Engine dispatches only the head entry of
each order. Entry N is not sent until entry N-1 was confirmed (and deleted)
or dead-lettered. Different orders dispatch concurrently.

Outcomes:

	Confirmed   delete the entry, upsert the returned order into the cache
	Conflict    refetch, rebase ExpectedVersion, resend (max_rebases times)
	Transient   attempts++, wait policy.Delay(attempts), or dead-letter
	Validation  dead-letter
	Fatal       dead-letter

Dead letters are kept under dlq:{id} until the TTL expires or an operator
requeues them.

The Syncer keeps the local order cache current with bootstrap snapshots and
cursor-based deltas. Cached rows are only replaced by newer versions; the
cache is never cleared and reloaded.
*/
package outbox
