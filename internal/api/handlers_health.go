// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 2 * time.Second

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status     string            `json:"status"`
	Role       string            `json:"role"`
	VenueID    string            `json:"venue_id,omitempty"`
	Uptime     float64           `json:"uptime_seconds"`
	Components map[string]string `json:"components,omitempty"`

	ProcessorAvailable bool `json:"processor_available"`
	SAFDepth           int  `json:"saf_depth"`
	OutboxQueued       int  `json:"outbox_queued,omitempty"`
	OutboxDead         int  `json:"outbox_dead,omitempty"`
	Subscribers        int  `json:"subscribers"`
}

// Health reports component state. It always answers 200 so dashboards can
// show a degraded node; use /health/ready for load balancer decisions.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components, ok := h.checkComponents(r.Context())
	status := HealthStatus{
		Status:     "healthy",
		Uptime:     time.Since(h.startTime).Seconds(),
		Components: components,
	}
	if !ok {
		status.Status = "degraded"
	}
	if h.config != nil {
		status.Role = h.config.Server.Role
		status.VenueID = h.config.Server.VenueID
	}
	if h.payments != nil {
		status.ProcessorAvailable = h.payments.ProcessorAvailable()
		status.SAFDepth = h.payments.Depth()
	}
	if h.outbox != nil {
		status.OutboxQueued, status.OutboxDead = h.outbox.Store().Depth()
	}
	if h.wsHub != nil {
		status.Subscribers = h.wsHub.GetClientCount()
	}
	respondJSON(w, r, http.StatusOK, status)
}

// HealthLive returns 200 while the process is running.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 until every registered dependency answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	components, ok := h.checkComponents(r.Context())
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, r, code, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}

func (h *Handler) checkComponents(ctx context.Context) (map[string]string, bool) {
	checks := h.readinessChecks()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			out[name] = err.Error()
			ok = false
			continue
		}
		out[name] = "ok"
	}
	return out, ok
}
