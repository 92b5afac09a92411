// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

// Event is one order change routed to a scope.
type Event struct {
	OrderID string
	Version int64
	Kind    models.MutationKind
}

// Notification is the merged result of every event a scope received within
// one debounce window.
type Notification struct {
	Scope    string           `json:"scope"`
	OrderIDs []string         `json:"order_ids"`
	Versions map[string]int64 `json:"versions"`
	Count    int              `json:"count"` // Events merged into this notification
}

func (n *Notification) add(e Event) {
	v, seen := n.Versions[e.OrderID]
	if !seen {
		n.OrderIDs = append(n.OrderIDs, e.OrderID)
	}
	if !seen || e.Version > v {
		n.Versions[e.OrderID] = e.Version
	}
	n.Count++
}

// Coalescer debounces events for a single scope. The first event of a burst
// arms a timer; events arriving before it fires are merged into the same
// notification.
type Coalescer struct {
	scope   string
	window  time.Duration
	deliver func(Notification)

	mu      sync.Mutex
	pending *Notification
	timer   *time.Timer
	stopped bool
}

// NewCoalescer creates a coalescer that calls deliver once per window.
func NewCoalescer(scope string, window time.Duration, deliver func(Notification)) *Coalescer {
	return &Coalescer{scope: scope, window: window, deliver: deliver}
}

// Add merges e into the pending notification.
func (c *Coalescer) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if c.pending == nil {
		c.pending = &Notification{Scope: c.scope, Versions: make(map[string]int64)}
		c.timer = time.AfterFunc(c.window, c.fire)
	} else {
		metrics.FanoutEventsCoalesced.Inc()
	}
	c.pending.add(e)
}

// Flush delivers the pending notification now, if any.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.fire()
}

// Stop discards pending events and rejects new ones.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Coalescer) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == nil
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	n := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	if n != nil {
		c.deliver(*n)
	}
}
