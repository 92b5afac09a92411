// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package fanout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidScope is returned for a malformed scope name.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrScopeForbidden is returned when a connection asks for a scope
	// outside its authenticated venue.
	ErrScopeForbidden = errors.New("scope is outside the connection's venue")
)

// ScopeKind distinguishes the three scope shapes.
type ScopeKind string

const (
	KindVenue    ScopeKind = "venue"
	KindStation  ScopeKind = "station"
	KindTerminal ScopeKind = "terminal"
)

const maxSegment = 64

// Scope is a parsed scope name.
type Scope struct {
	Venue string
	Kind  ScopeKind
	Key   string // station tag or terminal id; empty for venue scopes
}

// String returns the canonical scope name.
func (s Scope) String() string {
	if s.Kind == KindVenue {
		return "venue:" + s.Venue
	}
	return "venue:" + s.Venue + ":" + string(s.Kind) + ":" + s.Key
}

// VenueScope returns the scope every terminal of a venue joins.
func VenueScope(venue string) string { return Scope{Venue: venue, Kind: KindVenue}.String() }

// StationScope returns the scope for one prep station.
func StationScope(venue, tag string) string {
	return Scope{Venue: venue, Kind: KindStation, Key: tag}.String()
}

// TerminalScope returns the scope addressed to one terminal.
func TerminalScope(venue, terminal string) string {
	return Scope{Venue: venue, Kind: KindTerminal, Key: terminal}.String()
}

// ParseScope parses and validates a scope name.
func ParseScope(name string) (Scope, error) {
	parts := strings.Split(name, ":")
	if parts[0] != "venue" || (len(parts) != 2 && len(parts) != 4) {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, name)
	}
	for _, p := range parts[1:] {
		if !validSegment(p) {
			return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, name)
		}
	}

	s := Scope{Venue: parts[1], Kind: KindVenue}
	if len(parts) == 4 {
		switch ScopeKind(parts[2]) {
		case KindStation, KindTerminal:
			s.Kind = ScopeKind(parts[2])
			s.Key = parts[3]
		default:
			return Scope{}, fmt.Errorf("%w: unknown scope kind %q", ErrInvalidScope, parts[2])
		}
	}
	return s, nil
}

func validSegment(s string) bool {
	if s == "" || len(s) > maxSegment {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
