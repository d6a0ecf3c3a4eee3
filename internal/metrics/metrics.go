// Package metrics holds the prometheus collectors of the bridge.
//
// Collectors are registered on the registerer handed to New so that tests and
// the HTTP /metrics endpoint share one explicit registry. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vector_mcp"

// Metrics groups the bridge collectors.
type Metrics struct {
	messages        *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	sessions        prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jsonrpc_messages_total",
			Help:      "Inbound JSON-RPC messages by method and result.",
		}, []string{"method", "result"}),
		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Resource API calls by HTTP method and outcome kind.",
		}, []string{"method", "outcome"}),
		upstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Resource API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Connections currently being served.",
		}),
	}
}

// ObserveMessage counts one handled JSON-RPC message.
func (m *Metrics) ObserveMessage(method, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(method, result).Inc()
}

// ObserveUpstream records one Resource API call.
func (m *Metrics) ObserveUpstream(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(method, outcome).Inc()
	m.upstreamLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// SessionOpened increments the open sessions gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the open sessions gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
