// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package auth authenticates point-of-sale terminals.

Terminals are enrolled in configuration with a bcrypt hash of a shared
secret. A terminal exchanges its secret for a short-lived HS256 token
(TerminalRegistry.Login); every API call and websocket upgrade then carries
that token, either as "Authorization: Bearer <token>" or, for websocket
clients that cannot set headers, as the token query parameter.

Key Components:

  - JWTManager: token signing and validation; claims carry venue, terminal,
    employee and role
  - TerminalRegistry: secret verification with constant-time behaviour for
    unknown terminals
  - LockoutManager: locks a terminal after repeated failed logins, doubling
    the period on each repeat lockout
  - Middleware: chi middleware placing *Claims in the request context

Authorization decisions (what a role may do) live in package authz.
*/
package auth
