package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("ledger:backup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:backup").End(boom), boom)
	m.AddExported(3)
	m.AddExported(0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:backup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:backup", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:backup")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.exported))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddExported(5)
}
