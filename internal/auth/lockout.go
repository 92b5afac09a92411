// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package auth

import (
	"sync"
	"time"
)

// LockoutConfig holds configuration for terminal login lockout.
type LockoutConfig struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int

	// LockoutDuration is the base lockout period.
	LockoutDuration time.Duration

	// MaxLockoutDuration caps the doubling applied on repeat lockouts.
	MaxLockoutDuration time.Duration
}

// DefaultLockoutConfig returns sensible defaults.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
	}
}

// LockoutEntry tracks failed login attempts for one terminal.
type LockoutEntry struct {
	Subject        string
	FailedAttempts int
	LastAttempt    time.Time
	LockoutCount   int // Number of times locked out (for exponential backoff)
	LockedUntil    time.Time
}

func (e *LockoutEntry) lockedAt(now time.Time) bool {
	return now.Before(e.LockedUntil)
}

// LockoutManager counts failed terminal logins and locks the terminal out
// once MaxAttempts is reached. State is process-local.
type LockoutManager struct {
	config LockoutConfig
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*LockoutEntry
}

// NewLockoutManager creates a new lockout manager.
func NewLockoutManager(config LockoutConfig) *LockoutManager {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultLockoutConfig().MaxAttempts
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = DefaultLockoutConfig().LockoutDuration
	}
	if config.MaxLockoutDuration < config.LockoutDuration {
		config.MaxLockoutDuration = config.LockoutDuration
	}
	return &LockoutManager{
		config:  config,
		now:     time.Now,
		entries: make(map[string]*LockoutEntry),
	}
}

// CheckLocked reports whether the subject is locked and for how long.
func (m *LockoutManager) CheckLocked(subject string) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[subject]
	if !ok {
		return false, 0
	}
	now := m.now()
	if entry.lockedAt(now) {
		return true, entry.LockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailedAttempt counts a failure and reports whether it caused a lockout.
func (m *LockoutManager) RecordFailedAttempt(subject string) (locked bool, remaining time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[subject]
	if !ok {
		entry = &LockoutEntry{Subject: subject}
		m.entries[subject] = entry
	}
	if entry.lockedAt(now) {
		return true, entry.LockedUntil.Sub(now)
	}

	entry.FailedAttempts++
	entry.LastAttempt = now
	if entry.FailedAttempts < m.config.MaxAttempts {
		return false, 0
	}

	duration := calculateLockoutDuration(m.config, entry.LockoutCount)
	entry.LockoutCount++
	entry.FailedAttempts = 0
	entry.LockedUntil = now.Add(duration)
	return true, duration
}

// RecordSuccessfulLogin clears the failure count. Repeat-lockout history is
// dropped as well.
func (m *LockoutManager) RecordSuccessfulLogin(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, subject)
}

// Cleanup drops entries whose lockout expired more than MaxLockoutDuration ago.
func (m *LockoutManager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := m.now().Add(-m.config.MaxLockoutDuration)
	removed := 0
	for subject, entry := range m.entries {
		if entry.LastAttempt.Before(threshold) && !entry.lockedAt(m.now()) {
			delete(m.entries, subject)
			removed++
		}
	}
	return removed
}

// calculateLockoutDuration doubles the base period per previous lockout.
func calculateLockoutDuration(config LockoutConfig, lockoutCount int) time.Duration {
	duration := config.LockoutDuration
	for i := 0; i < lockoutCount; i++ {
		duration *= 2
		if duration >= config.MaxLockoutDuration {
			return config.MaxLockoutDuration
		}
	}
	return duration
}
