// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"sort"
	"sync"

	"github.com/tomtom215/tabline/internal/metrics"
)

// Subscriber is a connection that can receive notifications.
type Subscriber interface {
	// ID is unique per connection.
	ID() string
	// VenueID is the venue the connection authenticated for.
	VenueID() string
	// Notify queues n for delivery without blocking. It returns false if
	// the connection could not accept it.
	Notify(n Notification) bool
}

type scopeEntry struct {
	kind    ScopeKind
	mu      sync.Mutex
	members map[string]Subscriber
}

// Registry maps scopes to their member connections. The scope map has its
// own lock and each scope carries a separate member lock, so delivery to
// one scope never waits on another.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]*scopeEntry
	joined map[string]map[string]struct{} // subscriber id -> scope names
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes: make(map[string]*scopeEntry),
		joined: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds sub to scope. The scope must parse and must belong to the
// subscriber's venue.
func (r *Registry) Subscribe(sub Subscriber, scope string) error {
	s, err := ParseScope(scope)
	if err != nil {
		metrics.FanoutSubscribeDenied.Inc()
		return err
	}
	if s.Venue != sub.VenueID() {
		metrics.FanoutSubscribeDenied.Inc()
		return ErrScopeForbidden
	}
	name := s.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.scopes[name]
	if !ok {
		e = &scopeEntry{kind: s.Kind, members: make(map[string]Subscriber)}
		r.scopes[name] = e
	}
	e.mu.Lock()
	if _, dup := e.members[sub.ID()]; !dup {
		e.members[sub.ID()] = sub
		metrics.FanoutSubscriptions.WithLabelValues(string(s.Kind)).Inc()
	}
	e.mu.Unlock()

	set, ok := r.joined[sub.ID()]
	if !ok {
		set = make(map[string]struct{})
		r.joined[sub.ID()] = set
	}
	set[name] = struct{}{}
	return nil
}

// Unsubscribe removes sub from scope. Unknown scopes are ignored.
func (r *Registry) Unsubscribe(sub Subscriber, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sub.ID(), scope)
}

// UnsubscribeAll removes sub from every scope it joined.
func (r *Registry) UnsubscribeAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.joined[sub.ID()] {
		r.removeLocked(sub.ID(), name)
	}
	delete(r.joined, sub.ID())
}

func (r *Registry) removeLocked(id, scope string) {
	if set, ok := r.joined[id]; ok {
		delete(set, scope)
		if len(set) == 0 {
			delete(r.joined, id)
		}
	}

	e, ok := r.scopes[scope]
	if !ok {
		return
	}
	e.mu.Lock()
	if _, ok := e.members[id]; ok {
		delete(e.members, id)
		metrics.FanoutSubscriptions.WithLabelValues(string(e.kind)).Dec()
	}
	empty := len(e.members) == 0
	e.mu.Unlock()
	if empty {
		delete(r.scopes, scope)
	}
}

// Members returns the current members of scope ordered by id.
func (r *Registry) Members(scope string) []Subscriber {
	r.mu.RLock()
	e, ok := r.scopes[scope]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	out := make([]Subscriber, 0, len(e.members))
	for _, m := range e.members {
		out = append(out, m)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Scopes returns the scopes a subscriber has joined, sorted.
func (r *Registry) Scopes(sub Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.joined[sub.ID()]))
	for name := range r.joined[sub.ID()] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ScopeCount returns the number of scopes with at least one member.
func (r *Registry) ScopeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes)
}
