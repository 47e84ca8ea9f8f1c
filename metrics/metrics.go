package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	CallsStarted       prometheus.Counter
	CallsCompleted     prometheus.Counter
	CallsFailed        prometheus.Counter
	ActiveCalls        prometheus.Gauge
	HealthChecksTotal  prometheus.Counter
	HealthChecksFailed prometheus.Counter
	HealthyTrunks      prometheus.Gauge
	RateLimited        prometheus.Counter
	EventsPublished    prometheus.Counter
	EventsFailed       prometheus.Counter
	StreamClients      prometheus.Gauge
}

var (
	global *Metrics
	once   sync.Once
)

// Global returns the process-wide metrics set, registering it on first use.
func Global() *Metrics {
	once.Do(func() {
		global = newMetrics()
		global.register()
	})
	return global
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "http_requests_total",
			Help:      "API requests by route group and status class.",
		}, []string{"group", "status"}),
		CallsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "calls_started_total",
			Help:      "Calls placed or accepted over SIP trunks.",
		}),
		CallsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "calls_completed_total",
			Help:      "Calls that reached a terminal status.",
		}),
		CallsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "calls_failed_total",
			Help:      "Calls that ended failed, busy or unanswered.",
		}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airies",
			Name:      "active_calls",
			Help:      "Calls currently in progress across all trunks.",
		}),
		HealthChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "trunk_health_checks_total",
			Help:      "Trunk health probes performed.",
		}),
		HealthChecksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "trunk_health_checks_failed_total",
			Help:      "Trunk health probes that found the trunk unhealthy.",
		}),
		HealthyTrunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airies",
			Name:      "trunks_healthy",
			Help:      "Trunks currently reporting healthy.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "requests_rate_limited_total",
			Help:      "API requests rejected by the per-account rate limiter.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "events_published_total",
			Help:      "Domain events published to the broker.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airies",
			Name:      "events_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airies",
			Name:      "stream_clients",
			Help:      "WebSocket event stream clients currently connected.",
		}),
	}
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.HTTPRequests,
		m.CallsStarted,
		m.CallsCompleted,
		m.CallsFailed,
		m.ActiveCalls,
		m.HealthChecksTotal,
		m.HealthChecksFailed,
		m.HealthyTrunks,
		m.RateLimited,
		m.EventsPublished,
		m.EventsFailed,
		m.StreamClients,
	)
}
