package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peerrent"

// Metrics holds the engine's collectors on a dedicated registry.
type Metrics struct {
	registry   *prometheus.Registry
	commands   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	outbox     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by key and outcome.",
		}, []string{"command", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_conflicts_total",
			Help:      "Range claims refused because another reservation holds a day.",
		}, []string{"item_id"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_duplicate_events_total",
			Help:      "Gateway events dropped as replays.",
		}, []string{"type"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox records handed to the broker by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.commands, m.latency, m.conflicts, m.duplicates, m.outbox,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCommand(key, result string, elapsed time.Duration) {
	m.commands.WithLabelValues(key, result).Inc()
	m.latency.WithLabelValues(key).Observe(elapsed.Seconds())
}

func (m *Metrics) ConflictPrevented(itemID string) {
	m.conflicts.WithLabelValues(itemID).Inc()
}

func (m *Metrics) DuplicateGatewayEvent(eventType string) {
	m.duplicates.WithLabelValues(eventType).Inc()
}

func (m *Metrics) OutboxPublished(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.outbox.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
