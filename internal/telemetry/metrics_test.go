package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/zanrcon-project/zanrcon/internal/protocol"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter)
	return m.GetCounter().GetValue()
}

func TestMetricsRecordDatagrams(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.DatagramSent(protocol.PktCommand, 42)
	m.DatagramSent(protocol.PktCommand, 8)
	m.DatagramReceived(protocol.PktMessage, 100)

	sent, err := m.datagramsSent.GetMetricWithLabelValues(protocol.OpcodeName(protocol.PktCommand))
	require.NoError(t, err)
	require.Equal(t, float64(2), counterValue(t, sent))

	received, err := m.datagramsReceived.GetMetricWithLabelValues(protocol.OpcodeName(protocol.PktMessage))
	require.NoError(t, err)
	require.Equal(t, float64(1), counterValue(t, received))

	require.Equal(t, float64(50), counterValue(t, m.bytesSent))
	require.Equal(t, float64(100), counterValue(t, m.bytesReceived))
}

func TestMetricsRecordFailuresAndKeepAlives(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.KeepAlive()
	m.KeepAlive()
	m.DecodeFailure()

	require.Equal(t, float64(2), counterValue(t, m.keepAlives))
	require.Equal(t, float64(1), counterValue(t, m.decodeFailures))
}

func TestMetricsSatisfyRecorder(t *testing.T) {
	// Compile-time check that the session can be wired with Metrics.
	var _ interface {
		DatagramSent(opcode byte, wireBytes int)
		DatagramReceived(opcode byte, wireBytes int)
		KeepAlive()
		DecodeFailure()
	} = NewMetrics(prometheus.NewRegistry())
}
