// Package metrics holds the Prometheus instruments for a pipeline run.
//
// The tool is a batch CLI, so nothing is served; a run can dump the registry
// in the node_exporter textfile format for a collector to pick up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a run
type Metrics struct {
	registry *prometheus.Registry

	FetchedBytes   prometheus.Counter
	FetchRequests  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	GeometryStates *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "topofetch_fetched_bytes_total",
			Help: "Bytes downloaded from the elevation service",
		}),
		FetchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "topofetch_fetch_requests_total",
			Help: "Elevation service requests by dataset and outcome",
		}, []string{"dataset", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topofetch_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		GeometryStates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "topofetch_geometries_total",
			Help: "Region geometries by terminal state",
		}, []string{"state"}),
	}
}

// ObserveStage records the time elapsed since start for stage
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AddFetched records a finished request
func (m *Metrics) AddFetched(dataset, outcome string, n int64) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(dataset, outcome).Inc()
	if n > 0 {
		m.FetchedBytes.Add(float64(n))
	}
}

// IncGeometry records a geometry reaching a terminal state
func (m *Metrics) IncGeometry(state string) {
	if m == nil {
		return
	}
	m.GeometryStates.WithLabelValues(state).Inc()
}

// Gatherer exposes the registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the registry to path in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
