// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package fanout routes order change signals to interested connections.
//
// Connections join scopes. A scope names a venue, a prep station within a
// venue, or a single terminal:
//
//	venue:{venue}
//	venue:{venue}:station:{tag}
//	venue:{venue}:terminal:{terminal}
//
// The Registry validates every join against the connection's authenticated
// venue. The Fanout debounces bursts of events per scope and delivers one
// Notification per window to each member. Notifications carry order ids and
// versions only; receivers refetch the orders they care about.
package fanout
