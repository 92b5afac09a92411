// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package api provides the HTTP API for Tabline.

Every endpoint answers with the models.APIResponse envelope. Ledger and
payment errors are mapped to status codes by respondAppError:

  - 409 VERSION_CONFLICT: stale expected_version; details.current_version is authoritative
  - 422 VALIDATION_ERROR: rejected, do not retry
  - 503 BUSY with Retry-After: lock wait exceeded or a dependency is down
  - 500 FATAL_IRRECONCILABLE: money moved but the ledger could not record it
  - 409 OFFLINE_PENDING: batch close refused while offline payments are queued

Routes:

	POST /api/v1/auth/terminal                 terminal login, returns a JWT
	GET  /api/v1/health[/live|/ready]          probes
	GET  /api/v1/bootstrap                     open orders for the caller's venue
	GET  /api/v1/delta?since=N                 changes since a cursor
	POST /api/v1/outbox                        batch of queued terminal mutations
	GET  /api/v1/orders                        list open orders
	POST /api/v1/orders                        create a draft order
	GET  /api/v1/orders/{id}                   fetch one order
	POST /api/v1/orders/{id}/mutations         apply a mutation at an expected version
	POST /api/v1/orders/{id}/reopen            manager reopen
	GET  /api/v1/orders/{id}/payments          payment records for an order
	POST /api/v1/payments/authorize            authorize (or store offline)
	GET  /api/v1/payments/{ref}                payment record
	POST /api/v1/payments/{ref}/capture        capture and settle to the order
	POST /api/v1/payments/{ref}/void           void
	POST /api/v1/payments/{ref}/reconcile      query the processor and adopt its state
	GET  /api/v1/saf                           store-and-forward queue status
	POST /api/v1/saf/forward                   drain the queue now
	POST /api/v1/saf/close[?force=true]        close the batch
	GET  /api/v1/outbox/status                 edge outbox depth
	GET  /api/v1/outbox/dead-letters           dead-lettered entries
	POST /api/v1/outbox/dead-letters/{id}/requeue
	GET  /api/v1/audit                         audit events for the caller's venue
	POST /api/v1/admin/fleet/commands          publish force_resync, repair_outbox or kick
	GET  /api/v1/admin/backups                 local store snapshots
	POST /api/v1/admin/backups                 take a manual snapshot
	POST /api/v1/admin/backups/{id}/validate   verify a snapshot checksum
	GET  /ws                                   websocket notifications
	GET  /metrics                              Prometheus
	GET  /swagger/*                            Swagger UI and doc.json

Routes are guarded by auth.Middleware and authz.Authorizer.Require with the
action named in chi_router.go.
*/
package api
