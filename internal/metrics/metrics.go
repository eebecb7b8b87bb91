// ABOUTME: Prometheus metrics for the edge-gateway control plane
// ABOUTME: Tracks connected agents, heartbeats, auth rejections, and registrations

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the gateway
type Metrics struct {
	ConnectedAgents        prometheus.Gauge
	HeartbeatsTotal        prometheus.Counter
	AuthRejectionsTotal    prometheus.Counter
	CertRegistrationsTotal prometheus.Counter
	EventPublishErrors     prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry, so multiple
// gateway instances in one process never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.registry = reg
	return m
}

// Gatherer returns the registry backing the metrics, for serving via promhttp.
// Nil when the Metrics was built with NewWith against an external registerer.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// NewWith creates a Metrics instance registered with the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectedAgents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "edge_connected_agents",
			Help: "Number of agents with a live registered session",
		}),
		HeartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "edge_heartbeats_total",
			Help: "Total number of heartbeat messages processed",
		}),
		AuthRejectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "edge_auth_rejections_total",
			Help: "Total number of transport connections rejected by certificate validation",
		}),
		CertRegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "edge_cert_registrations_total",
			Help: "Total number of successful certificate registrations",
		}),
		EventPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "edge_event_publish_errors_total",
			Help: "Total number of fleet event publish failures",
		}),
	}
}
