package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's prometheus collectors on a private registry so
// tests can create servers independently.
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	cacheEvents *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daybreak",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})

	m.cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daybreak",
		Name:      "resource_cache_events_total",
		Help:      "Resource cache decisions, by strategy and event.",
	}, []string{"strategy", "event"})

	m.registry.MustRegister(m.requests, m.cacheEvents)
	return m
}

// handler serves the /metrics endpoint.
func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheEvent is wired into resource.TransportConfig.OnEvent.
func (m *metrics) CacheEvent(strategy, event string) {
	m.cacheEvents.WithLabelValues(strategy, event).Inc()
}
