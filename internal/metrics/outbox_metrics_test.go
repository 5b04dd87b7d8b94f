package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, g.Write(metric))
	return metric.Gauge.GetValue()
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPublish("stock.changed", OutboxResultSent)
	m.RecordPublish("stock.changed", OutboxResultSent)
	m.RecordPublish("order.created", OutboxResultFailed)
	require.Equal(t, 2.0, counterValue(t, m.publishAttempts.WithLabelValues("stock.changed", OutboxResultSent)))
	require.Equal(t, 1.0, counterValue(t, m.publishAttempts.WithLabelValues("order.created", OutboxResultFailed)))

	m.SetBacklog(7, 90*time.Second)
	require.Equal(t, 7.0, gaugeValue(t, m.pendingRecords))
	require.Equal(t, 90.0, gaugeValue(t, m.oldestPendingAge))

	m.SetBacklog(0, -time.Second)
	require.Zero(t, gaugeValue(t, m.oldestPendingAge))

	m.ObserveBatch(10 * time.Millisecond)
}

func TestNilOutboxMetrics(t *testing.T) {
	var m *OutboxMetrics
	require.NotPanics(t, func() {
		m.RecordPublish("stock.changed", OutboxResultSent)
		m.SetBacklog(1, time.Second)
		m.ObserveBatch(time.Second)
	})
}
