package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the possession engine. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Possessions created
	Created prometheus.Counter

	// Status changes by from/to
	Transitions *prometheus.CounterVec

	// Code collisions that forced another allocation
	CodeRetries prometheus.Counter

	// Handover gate evaluations by result
	HandoverChecks *prometheus.CounterVec

	// Plot/file/officer lookups by source
	CollaboratorLatency *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounter(prometheus.CounterOpts{
			Name: "estate_possessions_created_total",
			Help: "Total possession records created",
		}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_possession_transitions_total",
			Help: "Total possession status transitions by source and target status",
		}, []string{"from", "to"}),

		CodeRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "estate_possession_code_retries_total",
			Help: "Possession code collisions that forced a fresh allocation",
		}),

		HandoverChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_possession_handover_checks_total",
			Help: "Handover readiness evaluations by result",
		}, []string{"result"}), // result: "ready", "blocked"

		CollaboratorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estate_possession_collaborator_duration_seconds",
			Help:    "Duration of plot, file and officer lookups",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncCodeRetry() {
	if m != nil {
		m.CodeRetries.Inc()
	}
}

// IncHandoverCheck records one readiness evaluation.
func (m *Metrics) IncHandoverCheck(ready bool) {
	if m == nil {
		return
	}
	result := "blocked"
	if ready {
		result = "ready"
	}
	m.HandoverChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCollaboratorLatency(source string, d time.Duration) {
	if m != nil {
		m.CollaboratorLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveHTTP records one finished request. route is the matched route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
