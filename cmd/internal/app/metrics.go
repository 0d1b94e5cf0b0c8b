package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-level Prometheus instruments.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	GuardDenials prometheus.Counter
	Heartbeats   prometheus.Counter
	Kicks        prometheus.Counter
}

// NewMetrics builds and registers the instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loveludo",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loveludo",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		GuardDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loveludo",
			Name:      "guard_denials_total",
			Help:      "Requests denied by a guard (401 or 403).",
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loveludo",
			Name:      "heartbeats_total",
			Help:      "Accepted heartbeat posts.",
		}),
		Kicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loveludo",
			Name:      "session_kicks_total",
			Help:      "Forced-logout pushes sent over the realtime channel.",
		}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.GuardDenials, m.Heartbeats, m.Kicks)
	return m
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
