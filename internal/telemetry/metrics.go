// Package telemetry exports the client's wire activity: Prometheus
// instruments for the bridge's /metrics endpoint and an MQTT mirror of
// the console stream.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zanrcon-project/zanrcon/internal/protocol"
)

// Metrics holds Prometheus instruments for one client process. It
// implements the session's Recorder interface, so a session wired with
// it feeds every counter as datagrams move.
type Metrics struct {
	datagramsSent     *prometheus.CounterVec
	datagramsReceived *prometheus.CounterVec
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	keepAlives        prometheus.Counter
	decodeFailures    prometheus.Counter
}

// NewMetrics registers the client instruments with the given registry.
// A nil registry selects the default one.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		datagramsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams sent to the server by opcode",
		}, []string{"opcode"}),

		datagramsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "datagrams_received_total",
			Help:      "Datagrams received from the server by opcode",
		}, []string{"opcode"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "bytes_sent_total",
			Help:      "Compressed bytes written to the socket",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "bytes_received_total",
			Help:      "Compressed bytes read from the socket",
		}),

		keepAlives: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "keepalives_sent_total",
			Help:      "Keep-alive pongs sent after receive timeouts",
		}),

		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zanrcon",
			Name:      "decode_failures_total",
			Help:      "Datagrams dropped because decompression failed",
		}),
	}
}

// DatagramSent records one outbound datagram.
func (m *Metrics) DatagramSent(opcode byte, wireBytes int) {
	m.datagramsSent.WithLabelValues(protocol.OpcodeName(opcode)).Inc()
	m.bytesSent.Add(float64(wireBytes))
}

// DatagramReceived records one inbound datagram.
func (m *Metrics) DatagramReceived(opcode byte, wireBytes int) {
	m.datagramsReceived.WithLabelValues(protocol.OpcodeName(opcode)).Inc()
	m.bytesReceived.Add(float64(wireBytes))
}

// KeepAlive records one keep-alive pong.
func (m *Metrics) KeepAlive() {
	m.keepAlives.Inc()
}

// DecodeFailure records one dropped datagram.
func (m *Metrics) DecodeFailure() {
	m.decodeFailures.Inc()
}
