// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package websocket

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
var clientIDCounter atomic.Uint64

// Identity is the authenticated principal behind a connection.
type Identity struct {
	VenueID    string
	TerminalID string
	Role       string
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	identity Identity

	mu     sync.Mutex // guards send against close
	send   chan Message
	closed bool
}

// NewClient creates a new Client with a unique ID.
func NewClient(hub *Hub, conn *websocket.Conn, identity Identity) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan Message, sendBuffer),
	}
}

// ID implements fanout.Subscriber.
func (c *Client) ID() string { return strconv.FormatUint(c.id, 10) }

// VenueID implements fanout.Subscriber.
func (c *Client) VenueID() string { return c.identity.VenueID }

// Identity returns the connection's principal.
func (c *Client) Identity() Identity { return c.identity }

// Notify implements fanout.Subscriber.
func (c *Client) Notify(n fanout.Notification) bool {
	return c.trySend(Message{Type: MessageTypeRefresh, Data: n})
}

// trySend queues msg without blocking. It returns false if the client is
// closed or its buffer is full.
func (c *Client) trySend(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close closes the send channel once; the write pump then sends a close frame.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps frames from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Inbound
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("terminal_id", c.identity.TerminalID).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		c.handle(frame)
	}
}

func (c *Client) handle(frame Inbound) {
	switch frame.Type {
	case MessageTypePing:
		c.trySend(Message{Type: MessageTypePong})

	case MessageTypeSubscribe:
		if err := c.hub.registry.Subscribe(c, frame.Scope); err != nil {
			c.trySend(Message{Type: MessageTypeError, Data: ErrorData{Scope: frame.Scope, Error: err.Error()}})
			return
		}
		c.trySend(Message{Type: MessageTypeSubscribed, Data: ScopeData{Scope: frame.Scope}})

	case MessageTypeUnsubscribe:
		c.hub.registry.Unsubscribe(c, frame.Scope)
		c.trySend(Message{Type: MessageTypeUnsubscribed, Data: ScopeData{Scope: frame.Scope}})

	default:
		c.trySend(Message{Type: MessageTypeError, Data: ErrorData{Error: "unknown message type " + strconv.Quote(frame.Type)}})
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Debug().Err(err).Msg("failed to write websocket frame")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
