package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the conversion pipeline
type Metrics struct {
	pipelineRuns     *prometheus.CounterVec
	pipelineFailures *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	renames          *prometheus.CounterVec
	uploadSize       prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifc_pipeline_runs_total",
				Help: "Total number of pipeline runs by result",
			},
			[]string{"result"},
		),
		pipelineFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifc_pipeline_failures_total",
				Help: "Total number of pipeline failures by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ifc_pipeline_stage_duration_ms",
				Help:    "Duration of pipeline stages in milliseconds",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000},
			},
			[]string{"stage"},
		),
		renames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifc_object_renames_total",
				Help: "Total number of object rename requests by result",
			},
			[]string{"result"},
		),
		uploadSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ifc_upload_size_bytes",
				Help:    "Size of uploaded IFC files in bytes",
				Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
			},
		),
	}
}

// RecordStage records the duration of a pipeline stage
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.stageLatency.WithLabelValues(stage).Observe(float64(d.Microseconds()) / 1000.0)
}

// RecordFailure increments the failure counter for a stage and error kind
func (m *Metrics) RecordFailure(stage, kind string) {
	m.pipelineFailures.WithLabelValues(stage, kind).Inc()
}

// RecordRun increments the run counter
func (m *Metrics) RecordRun(result string) {
	m.pipelineRuns.WithLabelValues(result).Inc()
}

// RecordRename increments the rename counter
func (m *Metrics) RecordRename(result string) {
	m.renames.WithLabelValues(result).Inc()
}

// RecordUpload records the size of an accepted upload
func (m *Metrics) RecordUpload(bytes int64) {
	m.uploadSize.Observe(float64(bytes))
}
