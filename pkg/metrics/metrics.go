// Package metrics defines the Prometheus collectors for the salary services
// and the scrape server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNotReady    = "not_ready"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds every collector. New registers them on one Registerer.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestDuration  *prometheus.HistogramVec
	PredictionsTotal     *prometheus.CounterVec
	GatewayLatency       *prometheus.HistogramVec
	SessionLookupsTotal  *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	DatasetRows          prometheus.Gauge
	DatasetReloadsTotal  *prometheus.CounterVec
	RateLimitedTotal     prometheus.Counter
	UsageEventsTotal     *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_predictions_total",
				Help: "Prediction requests by outcome (ok, not_ready, unavailable).",
			},
			[]string{"outcome"},
		),
		GatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salary_gateway_latency_seconds",
				Help:    "Latency of one Predict+PredictRange pair against the gateway.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"gateway"},
		),
		SessionLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_session_lookups_total",
				Help: "Session loads by result (hit, miss).",
			},
			[]string{"result"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_selection_transitions_total",
				Help: "Selection state transitions by kind.",
			},
			[]string{"kind"},
		),
		DatasetRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "salary_dataset_rows",
				Help: "Rows in the active reference table.",
			},
		),
		DatasetReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_dataset_loads_total",
				Help: "Reference table load attempts by status.",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "salary_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		UsageEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_usage_events_total",
				Help: "Prediction usage events by publish status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.GatewayLatency,
		m.SessionLookupsTotal,
		m.TransitionsTotal,
		m.DatasetRows,
		m.DatasetReloadsTotal,
		m.RateLimitedTotal,
		m.UsageEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// DatasetLoaded records a successful reference table load.
func (m *Metrics) DatasetLoaded(rows int) {
	m.DatasetRows.Set(float64(rows))
	m.DatasetReloadsTotal.WithLabelValues("ok").Inc()
}

// DatasetLoadFailed records a failed reference table load.
func (m *Metrics) DatasetLoadFailed() {
	m.DatasetReloadsTotal.WithLabelValues("error").Inc()
}
