// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package cache provides a generic, thread-safe in-memory cache with TTL expiry.

Cache[V] backs several short-lived lookups that must not outlive their window:

  - Idempotency records for the ledger's in-process store (TTL = idempotency window)
  - Per-order reopen rate limiters (TTL = reopen window)
  - Catalog product lookups in front of a slower source
  - Casbin authorization decisions

# Usage

	c := cache.New[*IdempotencyRecord](24*time.Hour, time.Minute)
	defer c.Close()

	if prev, loaded := c.SetIfAbsent(key, rec); loaded {
	    return prev.Response, nil
	}

SetIfAbsent is the only atomic check-and-insert; callers that race on the
same key must use it rather than a Get followed by Set.

# Expiry

Expired entries are invisible to Get immediately and are removed either by
the background loop (when cleanupInterval > 0) or by an explicit Prune call.
The scheduler's idempotency-prune job calls Prune for stores created with a
zero cleanup interval.

# Keys

GenerateKey derives a stable key from a prefix and any JSON-encodable value:

	key := cache.GenerateKey("price", map[string]string{"venue": venueID, "sku": sku})

Close stops the cleanup goroutine; the cache stays usable afterwards but no
longer expires entries in the background.
*/
package cache
