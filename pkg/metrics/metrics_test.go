package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "rados_client")
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestObserveOperation_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveOperation("write", "ok", time.Millisecond)
	})
}

func TestObserveOperation_RecordsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "rados_client")
	m.ObserveOperation("write", "ok", 5*time.Millisecond)

	count := testutil.ToFloat64(m.OperationResults.WithLabelValues("write", "ok"))
	require.Equal(t, float64(1), count)
}
