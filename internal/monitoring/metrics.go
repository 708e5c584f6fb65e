package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

const namespace = "onchain_tracker"

// ExternalAPIMetrics contains all metrics for external API monitoring
type ExternalAPIMetrics struct {
	apiDuration         *prometheus.HistogramVec
	apiCalls            *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
	timeouts            *prometheus.CounterVec
}

// NewExternalAPIMetrics creates a new instance of external API metrics
func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_api_duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"api_name", "endpoint", "status"},
		),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_api_calls_total",
				Help:      "Total number of external API calls",
			},
			[]string{"api_name", "status"},
		),
		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"api_name"},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_api_timeouts_total",
				Help:      "Total number of external API timeouts",
			},
			[]string{"api_name", "timeout_type"},
		),
	}
}

// MustRegister registers all metrics with the provided registry
func (m *ExternalAPIMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.apiDuration,
		m.apiCalls,
		m.circuitBreakerState,
		m.timeouts,
	)
}

// RecordAPICall records an API call with duration and status
func (m *ExternalAPIMetrics) RecordAPICall(apiName, endpoint, status string, duration float64) {
	m.apiDuration.WithLabelValues(apiName, endpoint, status).Observe(duration)
	m.apiCalls.WithLabelValues(apiName, status).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(apiName string, state gobreaker.State) {
	m.circuitBreakerState.WithLabelValues(apiName).Set(float64(state))
}

// RecordTimeout records a timeout event
func (m *ExternalAPIMetrics) RecordTimeout(apiName, timeoutType string) {
	m.timeouts.WithLabelValues(apiName, timeoutType).Inc()
}

// ReconcilerMetrics tracks what each reconciliation tick did.
// A nil *ReconcilerMetrics records nothing.
type ReconcilerMetrics struct {
	ticks          *prometheus.CounterVec
	fetched        *prometheus.CounterVec
	upserts        *prometheus.CounterVec
	newlyConfirmed *prometheus.CounterVec
	degraded       *prometheus.GaugeVec
	backoff        *prometheus.GaugeVec
	cursor         *prometheus.GaugeVec
}

func NewReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciler_ticks_total",
				Help:      "Reconciliation ticks by result",
			},
			[]string{"network", "result"},
		),
		fetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciler_fetched_records_total",
				Help:      "Records returned by chain adapters",
			},
			[]string{"network"},
		),
		upserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciler_upserts_total",
				Help:      "Store upserts by outcome",
			},
			[]string{"network", "outcome"},
		),
		newlyConfirmed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciler_newly_confirmed_total",
				Help:      "Transactions that transitioned into confirmed",
			},
			[]string{"network"},
		),
		degraded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_degraded_addresses",
				Help:      "Addresses skipped in the last tick because of permanent upstream errors",
			},
			[]string{"network"},
		),
		backoff: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_backoff_seconds",
				Help:      "Current delay before the next reconciliation attempt",
			},
			[]string{"network"},
		),
		cursor: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_cursor_block",
				Help:      "Highest stored block number per network",
			},
			[]string{"network"},
		),
	}
}

func (m *ReconcilerMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.ticks, m.fetched, m.upserts, m.newlyConfirmed, m.degraded, m.backoff, m.cursor)
}

func (m *ReconcilerMetrics) RecordTick(network, result string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(network, result).Inc()
}

func (m *ReconcilerMetrics) RecordFetched(network string, n int) {
	if m == nil {
		return
	}
	m.fetched.WithLabelValues(network).Add(float64(n))
}

func (m *ReconcilerMetrics) RecordUpsert(network, outcome string, newlyConfirmed bool) {
	if m == nil {
		return
	}
	m.upserts.WithLabelValues(network, outcome).Inc()
	if newlyConfirmed {
		m.newlyConfirmed.WithLabelValues(network).Inc()
	}
}

func (m *ReconcilerMetrics) SetDegraded(network string, n int) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(network).Set(float64(n))
}

func (m *ReconcilerMetrics) SetBackoff(network string, seconds float64) {
	if m == nil {
		return
	}
	m.backoff.WithLabelValues(network).Set(seconds)
}

func (m *ReconcilerMetrics) SetCursor(network string, block uint64) {
	if m == nil {
		return
	}
	m.cursor.WithLabelValues(network).Set(float64(block))
}

// NotifierMetrics tracks the notification queue. A nil *NotifierMetrics records nothing.
type NotifierMetrics struct {
	events     *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

func NewNotifierMetrics() *NotifierMetrics {
	return &NotifierMetrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifier_events_total",
				Help:      "Notification events by result (enqueued, dropped, delivered, failed)",
			},
			[]string{"network", "result"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifier_queue_depth",
				Help:      "Notifications waiting for delivery",
			},
		),
	}
}

func (m *NotifierMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.events, m.queueDepth)
}

func (m *NotifierMetrics) Record(network, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(network, result).Inc()
}

func (m *NotifierMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
