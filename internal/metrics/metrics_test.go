package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.AddFetched("COP30", "ok", 2048)
	m.AddFetched("COP30", "error", 0)
	m.IncGeometry("DONE")
	m.ObserveStage("fetch", time.Now())

	assert.Equal(t, 2048.0, testutil.ToFloat64(m.FetchedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("COP30", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeometryStates.WithLabelValues("DONE")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddFetched("COP30", "ok", 1)
		m.IncGeometry("FAILED")
		m.ObserveStage("normalize", time.Now())
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncGeometry("SKIPPED")
	path := filepath.Join(t.TempDir(), "topofetch.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `topofetch_geometries_total{state="SKIPPED"} 1`)
}
