// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// @title Tabline API
// @version 1.0
// @description Order ledger, payment and outbox sync API for venue terminals and edge servers.
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Terminal token from /auth/terminal, sent as "Bearer <token>".
//
// @tag.name Sync
// @tag.description Bootstrap, delta and outbox intake for terminals and edge servers
//
// @tag.name Orders
// @tag.description Versioned, idempotent order writes
//
// @tag.name Payments
// @tag.description Authorization, capture, void and store-and-forward
//
// @tag.name Admin
// @tag.description Outbox, audit, backup and fleet operations

package main

import (
	_ "github.com/tomtom215/tabline/docs" // Registers the swagger document
)
