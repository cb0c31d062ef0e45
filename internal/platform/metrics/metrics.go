package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the watch progress service.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	samplesRecordedTotal prometheus.Counter
	sessionsStartedTotal prometheus.Counter
	sessionsEndedTotal   prometheus.Counter
	completionsTotal     prometheus.Counter
	activeSessions       prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		samplesRecordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_samples_recorded_total",
			Help: "Total number of playback samples applied to a session",
		}),
		sessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_sessions_started_total",
			Help: "Total number of viewing sessions started",
		}),
		sessionsEndedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_sessions_ended_total",
			Help: "Total number of viewing sessions ended",
		}),
		completionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_completions_total",
			Help: "Total number of sessions that reached the completion threshold",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watch_active_sessions",
			Help: "Number of sessions that are not ended",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.samplesRecordedTotal,
		m.sessionsStartedTotal,
		m.sessionsEndedTotal,
		m.completionsTotal,
		m.activeSessions,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSamplesRecorded increments the samples recorded counter.
func (m *Metrics) IncSamplesRecorded() {
	m.samplesRecordedTotal.Inc()
}

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncSessionsEnded increments the sessions ended counter.
func (m *Metrics) IncSessionsEnded() {
	m.sessionsEndedTotal.Inc()
}

// IncCompletions increments the completions counter.
func (m *Metrics) IncCompletions() {
	m.completionsTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
