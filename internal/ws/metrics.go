package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts frames crossing a connection. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	sendsDropped   *prometheus.CounterVec
	decodeErrors   prometheus.Counter
}

// NewMetrics builds the transport counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minigame",
			Subsystem: "ws",
			Name:      "frames_received_total",
			Help:      "Server frames decoded, by opcode.",
		}, []string{"opcode"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minigame",
			Subsystem: "ws",
			Name:      "frames_sent_total",
			Help:      "Client frames written, by opcode.",
		}, []string{"opcode"}),
		sendsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minigame",
			Subsystem: "ws",
			Name:      "sends_dropped_total",
			Help:      "Client frames discarded because the connection was not open.",
		}, []string{"opcode"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "minigame",
			Subsystem: "ws",
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they did not decode.",
		}),
	}
}

func (m *Metrics) received(op string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(op).Inc()
}

func (m *Metrics) sent(op string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(op).Inc()
}

func (m *Metrics) dropped(op string) {
	if m == nil {
		return
	}
	m.sendsDropped.WithLabelValues(op).Inc()
}

func (m *Metrics) decodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}
