// Package metrics exposes Prometheus collectors for room activity.
package metrics

import (
	"captioncast/internal/messages"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "captioncast"

type Metrics struct {
	registry    *prometheus.Registry
	rooms       prometheus.Gauge
	queueLength *prometheus.GaugeVec
	dispatched  *prometheus.CounterVec
	emergencies *prometheus.CounterVec
	dropped     prometheus.Counter
}

// New registers every collector on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_open",
			Help:      "Number of rooms in the registry.",
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backlog_length",
			Help:      "Items waiting in a room's take backlog.",
		}, []string{"room"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Messages delivered to viewers, by provenance.",
		}, []string{"provenance"}),
		emergencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_switches_total",
			Help:      "Automatic take-to-realtime switches caused by backlog overflow.",
		}, []string{"room"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_frames_total",
			Help:      "Frames dropped because a client buffer was full.",
		}),
	}
	m.registry.MustRegister(
		m.rooms, m.queueLength, m.dispatched, m.emergencies, m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RoomsOpen(n int) { m.rooms.Set(float64(n)) }

func (m *Metrics) QueueLength(room string, n int) {
	m.queueLength.WithLabelValues(room).Set(float64(n))
}

func (m *Metrics) Dispatched(_ string, p messages.Provenance) {
	m.dispatched.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) EmergencyForced(room string) {
	m.emergencies.WithLabelValues(room).Inc()
}

func (m *Metrics) FrameDropped() { m.dropped.Inc() }

// ForgetRoom drops the per-room series of a deleted room.
func (m *Metrics) ForgetRoom(room string) {
	m.queueLength.DeleteLabelValues(room)
	m.emergencies.DeleteLabelValues(room)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
