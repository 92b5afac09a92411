// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// Debounce window limits.
const (
	DefaultWindow = 75 * time.Millisecond
	MinWindow     = 10 * time.Millisecond
	MaxWindow     = 500 * time.Millisecond
)

// ValidateWindow reports whether d is an allowed debounce window.
func ValidateWindow(d time.Duration) error {
	if d < MinWindow || d > MaxWindow {
		return fmt.Errorf("debounce window %s outside [%s, %s]", d, MinWindow, MaxWindow)
	}
	return nil
}

// Fanout publishes events to registry scopes through per-scope coalescers.
type Fanout struct {
	registry *Registry
	window   time.Duration

	mu         sync.Mutex
	coalescers map[string]*Coalescer
	closed     bool
}

// New creates a fan-out over registry.
func New(registry *Registry, window time.Duration) (*Fanout, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	return &Fanout{
		registry:   registry,
		window:     window,
		coalescers: make(map[string]*Coalescer),
	}, nil
}

// Registry returns the underlying registry.
func (f *Fanout) Registry() *Registry { return f.registry }

// Publish queues e for scope. Scopes with no members are skipped without
// arming a timer.
func (f *Fanout) Publish(scope string, e Event) {
	if len(f.registry.Members(scope)) == 0 {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	c, ok := f.coalescers[scope]
	if !ok {
		c = NewCoalescer(scope, f.window, f.deliver)
		f.coalescers[scope] = c
	}
	f.mu.Unlock()

	c.Add(e)
}

// deliver sends n to every member of its scope. Members that cannot keep
// up miss the notification and are expected to resync on their next one.
func (f *Fanout) deliver(n Notification) {
	members := f.registry.Members(n.Scope)
	for _, m := range members {
		if m.Notify(n) {
			metrics.FanoutNotifications.WithLabelValues("delivered").Inc()
			continue
		}
		metrics.FanoutNotifications.WithLabelValues("dropped").Inc()
		logging.Debug().Str("scope", n.Scope).Str("subscriber", m.ID()).Msg("Notification dropped, subscriber is slow")
	}

	// Idle scopes release their coalescer.
	if len(members) == 0 {
		f.mu.Lock()
		if c, ok := f.coalescers[n.Scope]; ok && c.idle() {
			delete(f.coalescers, n.Scope)
		}
		f.mu.Unlock()
	}
}

// Close stops every coalescer. Pending notifications are discarded.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for scope, c := range f.coalescers {
		c.Stop()
		delete(f.coalescers, scope)
	}
}
