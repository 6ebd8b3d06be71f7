package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineTimings_Headers(t *testing.T) {
	timings := NewPipelineTimings("abc")

	st := timings.StartStage("dae_converted")
	timings.EndStage(st, nil)
	st = timings.StartStage("obj_converted")
	timings.EndStage(st, errors.New("boom"))
	timings.Finalize()

	require.Len(t, timings.Stages, 2)
	assert.Equal(t, "boom", timings.Stages[1].Error)
	assert.Equal(t, "obj_converted", timings.FailedStage)

	headers := timings.GetHeaders()
	assert.Contains(t, headers, "X-Latency-Total-Ms")
	assert.Contains(t, headers, "X-Latency-Dae-Converted-Ms")
	assert.Contains(t, headers, "X-Latency-Obj-Converted-Ms")
	assert.Equal(t, "obj_converted", headers["X-Failed-Stage"])
}

func TestHeaderName(t *testing.T) {
	assert.Equal(t, "Tagged", headerName("tagged"))
	assert.Equal(t, "Dae-Converted", headerName("dae_converted"))
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRun("success")
	m.RecordRun("failure")
	m.RecordRun("failure")
	m.RecordFailure("obj_converted", "ARTIFACT_NOT_PRODUCED")
	m.RecordStage("tagged", 15*time.Millisecond)
	m.RecordRename("success")
	m.RecordUpload(1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineFailures.WithLabelValues("obj_converted", "ARTIFACT_NOT_PRODUCED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renames.WithLabelValues("success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageLatency))
}
