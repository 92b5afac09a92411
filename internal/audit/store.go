// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
)

// MemoryStore implements Store in memory, bounded to maxLen events.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
	}
}

// Save persists an audit event.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove the oldest 10% when full
	if len(s.events) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount == 0 {
			removeCount = 1
		}
		s.events = s.events[removeCount:]
	}

	s.events = append(s.events, *event)
	return nil
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, fmt.Errorf("audit event %s: %w", id, apperr.ErrNotFound)
}

// Query returns matching events, most recent first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Event{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if !matchesFilter(&s.events[i], &filter) {
			continue
		}
		results = append(results, s.events[i])
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 && !contains(filter.Types, event.Type) {
		return false
	}
	if len(filter.Severities) > 0 && !contains(filter.Severities, event.Severity) {
		return false
	}
	if filter.VenueID != "" && event.Actor.VenueID != filter.VenueID {
		return false
	}
	if filter.TerminalID != "" && event.Actor.TerminalID != filter.TerminalID {
		return false
	}
	if filter.TargetID != "" && (event.Target == nil || event.Target.ID != filter.TargetID) {
		return false
	}
	if filter.TargetType != "" && (event.Target == nil || event.Target.Type != filter.TargetType) {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.RequestID != "" && event.RequestID != filter.RequestID {
		return false
	}
	if filter.SearchText != "" {
		q := strings.ToLower(filter.SearchText)
		if !strings.Contains(strings.ToLower(event.Description), q) &&
			!strings.Contains(strings.ToLower(event.Action), q) {
			return false
		}
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for i := range s.events {
		if s.events[i].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.events[i])
	}
	s.events = kept
	return deleted, nil
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// CEFExporter exports events in Common Event Format for SIEM ingestion.
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a CEF exporter with Tabline's device fields.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Tabline",
		DeviceProduct: "OrderSync",
		DeviceVersion: "1.0",
	}
}

// Export renders events one per line:
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	lines := make([]string, 0, len(events))
	for i := range events {
		event := &events[i]
		lines = append(lines, fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(string(event.Type)),
			e.escape(event.Description),
			cefSeverity(event.Severity),
			e.extension(event),
		))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func cefSeverity(severity Severity) int {
	switch severity {
	case SeverityInfo:
		return 3
	case SeverityWarning:
		return 5
	case SeverityError:
		return 7
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

func (e *CEFExporter) extension(event *Event) string {
	parts := []string{fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli())}
	if event.Actor.TerminalID != "" {
		parts = append(parts, "dvchost="+e.escape(event.Actor.TerminalID))
	}
	if event.Actor.EmployeeID != "" {
		parts = append(parts, "suid="+e.escape(event.Actor.EmployeeID))
	}
	if event.Target != nil {
		parts = append(parts, "duid="+e.escape(event.Target.ID))
	}
	parts = append(parts, "act="+e.escape(event.Action), "outcome="+e.escape(string(event.Outcome)))
	if event.RequestID != "" {
		parts = append(parts, "externalId="+e.escape(event.RequestID))
	}
	return strings.Join(parts, " ")
}

func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// ExportJSON renders events as an indented JSON array.
func ExportJSON(events []Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}
