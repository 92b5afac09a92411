// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeHello        = "hello"
	MessageTypeRefresh      = "refresh"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeError        = "error"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is a frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound is a frame received from a client.
type Inbound struct {
	Type  string `json:"type"`
	Scope string `json:"scope,omitempty"`
}

// HelloData is the payload of the first frame on every connection.
type HelloData struct {
	ConnectionID    string    `json:"connection_id"`
	VenueID         string    `json:"venue_id"`
	TerminalID      string    `json:"terminal_id,omitempty"`
	RefetchRequired bool      `json:"refetch_required"`
	Scopes          []string  `json:"scopes"`
	ServerTime      time.Time `json:"server_time"`
}

// ScopeData acknowledges a subscribe or unsubscribe.
type ScopeData struct {
	Scope string `json:"scope"`
}

// ErrorData reports a rejected client frame.
type ErrorData struct {
	Scope string `json:"scope,omitempty"`
	Error string `json:"error"`
}

// Hub maintains the set of active clients and their scope subscriptions.
type Hub struct {
	clients    map[*Client]bool
	registry   *fanout.Registry
	upgrader   websocket.Upgrader
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub whose clients subscribe through registry.
// allowedOrigins of ["*"] or empty accepts any origin.
func NewHub(registry *fanout.Registry, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   registry,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: originChecker(allowedOrigins)},
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // native terminal clients send no Origin
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades an authenticated request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := NewClient(h, conn, identity)
	select {
	case h.Register <- client:
		client.Start()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

// RunWithContext processes client lifecycle events until ctx is canceled,
// then closes every client. Lifecycle events are drained before checking
// for shutdown again so client state stays consistent.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

// register joins the client's default scopes and sends the hello frame.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Inc()

	id := c.Identity()
	defaults := []string{fanout.VenueScope(id.VenueID)}
	if id.TerminalID != "" {
		defaults = append(defaults, fanout.TerminalScope(id.VenueID, id.TerminalID))
	}
	for _, scope := range defaults {
		if err := h.registry.Subscribe(c, scope); err != nil {
			logging.Warn().Err(err).Str("scope", scope).Msg("default scope rejected")
		}
	}

	c.trySend(Message{Type: MessageTypeHello, Data: HelloData{
		ConnectionID:    c.ID(),
		VenueID:         id.VenueID,
		TerminalID:      id.TerminalID,
		RefetchRequired: true,
		Scopes:          h.registry.Scopes(c),
		ServerTime:      time.Now().UTC(),
	}})

	logging.Info().
		Str("venue_id", id.VenueID).
		Str("terminal_id", id.TerminalID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.registry.UnsubscribeAll(c)
	c.close()
	metrics.WSConnections.Dec()
	logging.Info().Str("terminal_id", c.Identity().TerminalID).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes clients in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		h.registry.UnsubscribeAll(client)
		client.close()
		metrics.WSConnections.Dec()
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Kick closes every connection of a terminal. The terminal reconnects and
// receives a fresh hello.
func (h *Hub) Kick(venueID, terminalID string) int {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients {
		id := c.Identity()
		if id.VenueID == venueID && (terminalID == "" || id.TerminalID == terminalID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.close()
	}
	return len(targets)
}
