// ABOUTME: Prometheus collectors for the console's event and command flow.
// ABOUTME: Uses a private registry so tests can assert counter values in isolation.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the console's collectors. All counters are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	EventsConsumed    *prometheus.CounterVec
	DuplicatesDropped prometheus.Counter
	CommandFailures   *prometheus.CounterVec
	FallbackEmissions prometheus.Counter
	Conversations     prometheus.Gauge
}

// New creates and registers the console collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_events_consumed_total",
			Help: "Push events consumed, by event type.",
		}, []string{"event"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_duplicates_dropped_total",
			Help: "Messages or events dropped by id dedupe.",
		}),
		CommandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_command_failures_total",
			Help: "Backend commands that failed, by command.",
		}, []string{"command"}),
		FallbackEmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_fallback_emissions_total",
			Help: "Commands re-issued over the push channel after REST failure.",
		}),
		Conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_conversations_tracked",
			Help: "Conversations currently in the roster.",
		}),
	}

	reg.MustRegister(
		m.EventsConsumed,
		m.DuplicatesDropped,
		m.CommandFailures,
		m.FallbackEmissions,
		m.Conversations,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
