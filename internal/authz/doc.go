// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package authz decides what an authenticated terminal may do.
//
// Roles come from the terminal enrolment and are checked with a Casbin RBAC
// model (model.conf) against a policy of role, object and verb triples
// (policy.csv). Both are embedded and can be replaced by files via
// security.casbin. manager inherits server and admin inherits manager.
//
// Authorizer is used in two places: as chi middleware guarding API routes,
// and as the ledger's Authorizer for order reopen.
package authz
