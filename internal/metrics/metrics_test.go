package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	r := New("lobcore_test", nil)
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObservePoolAndRingStats(t *testing.T) {
	r := New("lobcore_test2", nil)

	r.ObservePoolStats(42, 1024)
	r.ObserveRingStats(7, 64)

	var m dto.Metric
	require.NoError(t, r.PoolActive.Write(&m))
	assert.Equal(t, float64(42), m.GetGauge().GetValue())

	require.NoError(t, r.RingCapacity.Write(&m))
	assert.Equal(t, float64(64), m.GetGauge().GetValue())
}

func TestOrdersSubmittedCounterVec(t *testing.T) {
	r := New("lobcore_test3", nil)
	r.OrdersSubmitted.WithLabelValues("filled").Inc()
	r.OrdersSubmitted.WithLabelValues("filled").Inc()
	r.OrdersSubmitted.WithLabelValues("rejected").Inc()

	assert.Equal(t, float64(2), counterValue(t, r.OrdersSubmitted.WithLabelValues("filled")))
	assert.Equal(t, float64(1), counterValue(t, r.OrdersSubmitted.WithLabelValues("rejected")))
}
