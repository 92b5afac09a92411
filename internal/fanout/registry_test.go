// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeSub struct {
	id    string
	venue string

	mu    sync.Mutex
	got   []Notification
	full  bool
	calls chan Notification
}

func newSub(id, venue string) *fakeSub {
	return &fakeSub{id: id, venue: venue, calls: make(chan Notification, 16)}
}

func (s *fakeSub) ID() string      { return s.id }
func (s *fakeSub) VenueID() string { return s.venue }

func (s *fakeSub) Notify(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.got = append(s.got, n)
	s.calls <- n
	return true
}

func (s *fakeSub) received() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func TestRegistrySubscribeVenuePrefix(t *testing.T) {
	r := NewRegistry()
	sub := newSub("c1", "v1")

	if err := r.Subscribe(sub, "venue:v1:station:grill"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := r.Subscribe(sub, "venue:v2"); !errors.Is(err, ErrScopeForbidden) {
		t.Errorf("cross-venue Subscribe() error = %v, want ErrScopeForbidden", err)
	}
	if err := r.Subscribe(sub, "venue:v1:bogus:x"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("malformed Subscribe() error = %v, want ErrInvalidScope", err)
	}

	if got := r.Members("venue:v1:station:grill"); len(got) != 1 || got[0].ID() != "c1" {
		t.Errorf("Members() = %v", got)
	}
	if got := r.Members("venue:v2"); len(got) != 0 {
		t.Errorf("forbidden scope has members: %v", got)
	}
}

func TestRegistryUnsubscribeAll(t *testing.T) {
	r := NewRegistry()
	a, b := newSub("a", "v1"), newSub("b", "v1")

	for _, scope := range []string{"venue:v1", "venue:v1:terminal:a"} {
		if err := r.Subscribe(a, scope); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Subscribe(b, "venue:v1"); err != nil {
		t.Fatal(err)
	}
	if got := r.Scopes(a); len(got) != 2 {
		t.Errorf("Scopes(a) = %v", got)
	}

	r.UnsubscribeAll(a)

	if got := r.Members("venue:v1"); len(got) != 1 || got[0].ID() != "b" {
		t.Errorf("Members(venue) = %v, want only b", got)
	}
	if r.ScopeCount() != 1 {
		t.Errorf("ScopeCount() = %d, want empty terminal scope removed", r.ScopeCount())
	}
	if got := r.Scopes(a); len(got) != 0 {
		t.Errorf("Scopes(a) after UnsubscribeAll = %v", got)
	}
}

func TestRegistryConcurrentSubscribe(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := newSub(fmt.Sprintf("c%02d", i), "v1")
			_ = r.Subscribe(sub, "venue:v1")
			_ = r.Subscribe(sub, fmt.Sprintf("venue:v1:terminal:t%d", i%5))
			if i%2 == 0 {
				r.UnsubscribeAll(sub)
			}
		}(i)
	}
	wg.Wait()

	if got := len(r.Members("venue:v1")); got != 25 {
		t.Errorf("Members(venue) = %d, want 25", got)
	}
}
