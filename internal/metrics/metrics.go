package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "robot_bridge"

// Metrics is registered on its own registry so several bridges can live in one process (tests).
//
//   - robot_bridge_handshakes_started_total{kind}
//   - robot_bridge_handshakes_finished_total{kind,outcome}
//   - robot_bridge_handshake_wait_seconds{kind}
//   - robot_bridge_handshake_pending
//   - robot_bridge_moves_emitted_total{kind,side}
//   - robot_bridge_moves_rejected_total{code}
//   - robot_bridge_storage_slots_remaining{color,purpose}
type Metrics struct {
	registry *prometheus.Registry

	HandshakesStarted  *prometheus.CounterVec
	HandshakesFinished *prometheus.CounterVec
	HandshakeWait      *prometheus.HistogramVec
	Pending            prometheus.Gauge
	MovesEmitted       *prometheus.CounterVec
	MovesRejected      *prometheus.CounterVec
	StorageSlots       *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HandshakesStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_started_total",
			Help:      "Robot files written and awaiting deletion",
		}, []string{"kind"}),
		HandshakesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_finished_total",
			Help:      "Handshakes that returned to idle, by outcome",
		}, []string{"kind", "outcome"}),
		HandshakeWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_wait_seconds",
			Help:      "Time between writing a robot file and the handshake ending",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"kind"}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handshake_pending",
			Help:      "1 while a robot file is outstanding",
		}),
		MovesEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_emitted_total",
			Help:      "Moves communicated to the robot",
		}, []string{"kind", "side"}),
		MovesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_rejected_total",
			Help:      "Moves that could not be communicated, by error code",
		}, []string{"code"}),
		StorageSlots: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_slots_remaining",
			Help:      "Free storage slots beside the board",
		}, []string{"color", "purpose"}),
	}
}

func (m *Metrics) HandshakeStarted(kind string) {
	m.HandshakesStarted.WithLabelValues(kind).Inc()
	m.Pending.Set(1)
}

func (m *Metrics) HandshakeFinished(kind, outcome string, waited time.Duration) {
	m.HandshakesFinished.WithLabelValues(kind, outcome).Inc()
	m.HandshakeWait.WithLabelValues(kind).Observe(waited.Seconds())
	m.Pending.Set(0)
}

func (m *Metrics) MoveEmitted(kind, side string) {
	m.MovesEmitted.WithLabelValues(kind, side).Inc()
}

func (m *Metrics) MoveRejected(code string) {
	m.MovesRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) StorageRemaining(color, purpose string, n int) {
	m.StorageSlots.WithLabelValues(color, purpose).Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
