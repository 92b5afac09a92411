// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package websocket delivers order refresh signals to terminals and kitchen
displays over gorilla/websocket.

Key Components:

  - Hub: tracks connected clients and their fan-out subscriptions
  - Client: one authenticated connection with read and write goroutines
  - Message: typed frame exchanged in both directions

Protocol:

The first frame a client receives is always a hello:

	{"type":"hello","data":{"connection_id":"17","venue_id":"v1",
	 "terminal_id":"t3","refetch_required":true,"scopes":["venue:v1","venue:v1:terminal:t3"]}}

refetch_required is always true. Events published before the connection
existed were not seen, so the client must load a snapshot or delta before
trusting its cache.

Clients manage their scopes with:

	{"type":"subscribe","scope":"venue:v1:station:grill"}
	{"type":"unsubscribe","scope":"venue:v1:station:grill"}

and receive a subscribed, unsubscribed or error frame in reply. A scope
outside the connection's venue is refused.

Order changes arrive as refresh frames carrying a fanout.Notification:

	{"type":"refresh","data":{"scope":"venue:v1","order_ids":["o1"],
	 "versions":{"o1":6},"count":2}}

Refresh frames never contain order state. A client compares versions with
its cache and fetches what is stale.

Each client has two goroutines:
  - readPump: reads frames, applies subscribe requests, answers pings
  - writePump: writes queued frames and keep-alive pings

A client whose send buffer fills misses refresh frames rather than
stalling delivery to its scope; its next refresh or delta poll catches it
up.
*/
package websocket
