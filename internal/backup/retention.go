// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package backup

import (
	"context"
	"sort"
	"time"
)

// Cleanup deletes snapshots the retention policy no longer keeps, plus
// failed attempts, and returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()

	now := m.now()
	var failed []*Backup
	for _, b := range m.metadata.Backups {
		if b.Status == StatusFailed {
			failed = append(failed, b)
		}
	}
	completed := m.completedSortedLocked()
	toDelete := append(failed, selectExpired(completed, m.cfg.Retention, now)...)

	removed := 0
	for _, b := range toDelete {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := m.deleteLocked(b.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Backup retention applied")
	}
	return removed, nil
}

// completedSortedLocked returns completed backups, newest first.
func (m *Manager) completedSortedLocked() []*Backup {
	var out []*Backup
	for _, b := range m.metadata.Backups {
		if b.Status == StatusCompleted {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// selectExpired applies policy to backups sorted newest first.
//
// The newest MinCount and everything younger than KeepRecentHours are
// protected. Of the rest, anything older than MaxAgeDays goes, and then
// the oldest go until at most MaxCount remain.
func selectExpired(backups []*Backup, policy RetentionPolicy, now time.Time) []*Backup {
	keep := make(map[string]bool, len(backups))
	for i := 0; i < policy.MinCount && i < len(backups); i++ {
		keep[backups[i].ID] = true
	}
	if policy.KeepRecentHours > 0 {
		cutoff := now.Add(-time.Duration(policy.KeepRecentHours) * time.Hour)
		for _, b := range backups {
			if b.CreatedAt.After(cutoff) {
				keep[b.ID] = true
			}
		}
	}

	var survivors, expired []*Backup
	for _, b := range backups {
		if !keep[b.ID] && policy.MaxAgeDays > 0 && b.CreatedAt.Before(now.AddDate(0, 0, -policy.MaxAgeDays)) {
			expired = append(expired, b)
			continue
		}
		survivors = append(survivors, b)
	}

	if policy.MaxCount <= 0 || len(survivors) <= policy.MaxCount {
		return expired
	}
	excess := len(survivors) - policy.MaxCount
	for i := len(survivors) - 1; i >= 0 && excess > 0; i-- {
		if keep[survivors[i].ID] {
			continue
		}
		expired = append(expired, survivors[i])
		excess--
	}
	return expired
}
