// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package metrics holds the Prometheus instrumentation for every Tabline
// component. Metrics are registered with the default registry via promauto
// and served by the API at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabline_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Ledger Metrics
	LedgerApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabline_ledger_apply_duration_seconds",
			Help:    "Duration of ledger mutations including lock wait",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	LedgerApplyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_ledger_apply_total",
			Help: "Ledger mutations by kind and result class",
		},
		[]string{"kind", "result"}, // result: ok, replayed, conflict, validation, transient, fatal, not_found
	)

	LedgerLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabline_ledger_lock_wait_seconds",
			Help:    "Time spent waiting for an order row lock",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
	)

	LedgerIdempotencyEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_ledger_idempotency_entries",
			Help: "Idempotency records currently retained",
		},
	)

	// Outbox Metrics
	OutboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_outbox_pending_entries",
			Help: "Outbox entries not yet confirmed (pending, sending or failed)",
		},
	)

	OutboxDeadLetters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_outbox_dead_letter_entries",
			Help: "Outbox entries awaiting operator resolution",
		},
	)

	OutboxDispatchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_outbox_dispatch_total",
			Help: "Outbox dispatch outcomes",
		},
		[]string{"result"}, // confirmed, conflict, retry, dead_letter
	)

	OutboxDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabline_outbox_dispatch_duration_seconds",
			Help:    "Round-trip time of a single outbox submission",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_sync_runs_total",
			Help: "Bootstrap and delta sync runs",
		},
		[]string{"mode", "status"},
	)

	// Fan-out Metrics
	FanoutSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tabline_fanout_subscriptions",
			Help: "Active scope subscriptions by scope kind",
		},
		[]string{"kind"}, // venue, station, terminal
	)

	FanoutEventsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabline_fanout_events_coalesced_total",
			Help: "Published events merged into an already pending notification",
		},
	)

	FanoutNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_fanout_notifications_total",
			Help: "Notifications delivered to subscribers",
		},
		[]string{"result"}, // delivered, dropped
	)

	FanoutSubscribeDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabline_fanout_subscribe_denied_total",
			Help: "Subscription attempts rejected by scope validation",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabline_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabline_websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	// Payment Metrics
	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_payment_transitions_total",
			Help: "Authorization record state transitions",
		},
		[]string{"from", "to"},
	)

	PaymentCompensatingVoids = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_payment_compensating_voids_total",
			Help: "Voids issued because the ledger write failed after capture",
		},
		[]string{"result"}, // ok, failed
	)

	PaymentFatal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabline_payment_irreconcilable_total",
			Help: "Payments left inconsistent after compensation failed",
		},
	)

	SAFDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_payment_saf_depth",
			Help: "Transactions stored offline awaiting forward",
		},
	)

	SAFForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_payment_saf_forwarded_total",
			Help: "Store-and-forward transactions forwarded to the processor",
		},
		[]string{"result"}, // captured, declined, retry
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tabline_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Bus Metrics
	EventBusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_eventbus_messages_total",
			Help: "Messages published and consumed on the event bus",
		},
		[]string{"topic", "direction"}, // direction: published, consumed, failed
	)

	// Task Queue Metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_tasks_total",
			Help: "Side-effect tasks by kind and outcome",
		},
		[]string{"kind", "result"}, // ok, failed, dropped
	)

	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabline_task_queue_depth",
			Help: "Side-effect tasks waiting for a worker",
		},
	)

	// Scheduler Metrics
	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_scheduler_job_runs_total",
			Help: "Maintenance job runs by job and outcome",
		},
		[]string{"job", "result"}, // ok, failed, skipped
	)

	// Auth Metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_auth_attempts_total",
			Help: "Terminal logins and token checks by outcome",
		},
		[]string{"method", "result"}, // method: login, token; result: ok, denied, locked
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabline_authz_decisions_total",
			Help: "Casbin authorization decisions",
		},
		[]string{"result", "cached"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordLedgerApply records one ledger mutation.
func RecordLedgerApply(kind, result string, duration time.Duration) {
	LedgerApplyDuration.WithLabelValues(kind).Observe(duration.Seconds())
	LedgerApplyResults.WithLabelValues(kind, result).Inc()
}

// RecordOutboxDispatch records one outbox submission outcome.
func RecordOutboxDispatch(result string, duration time.Duration) {
	OutboxDispatchResults.WithLabelValues(result).Inc()
	if duration > 0 {
		OutboxDispatchDuration.Observe(duration.Seconds())
	}
}

// RecordSync records a bootstrap or delta run.
func RecordSync(mode string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SyncRuns.WithLabelValues(mode, status).Inc()
}

// RecordPaymentTransition records an authorization record state change.
func RecordPaymentTransition(from, to string) {
	PaymentTransitions.WithLabelValues(from, to).Inc()
}

// RecordCompensatingVoid records the outcome of a compensating void.
func RecordCompensatingVoid(err error) {
	if err != nil {
		PaymentCompensatingVoids.WithLabelValues("failed").Inc()
		PaymentFatal.Inc()
		return
	}
	PaymentCompensatingVoids.WithLabelValues("ok").Inc()
}

// RecordTask records a side-effect task outcome.
func RecordTask(kind, result string) {
	TasksSubmitted.WithLabelValues(kind, result).Inc()
}

// RecordSchedulerJob records one maintenance job run.
func RecordSchedulerJob(job, result string) {
	SchedulerJobRuns.WithLabelValues(job, result).Inc()
}

// RecordEventBus records an event bus message.
func RecordEventBus(topic, direction string) {
	EventBusMessages.WithLabelValues(topic, direction).Inc()
}

// RecordAuthAttempt records a login or token validation outcome.
func RecordAuthAttempt(method, result string) {
	AuthAttempts.WithLabelValues(method, result).Inc()
}

// RecordAuthzDecision records an authorization decision.
func RecordAuthzDecision(allowed, cached bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	AuthzDecisions.WithLabelValues(result, strconv.FormatBool(cached)).Inc()
}
