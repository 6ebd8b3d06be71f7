package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// PipelineTimings holds latency measurements for one pipeline run
type PipelineTimings struct {
	mu sync.RWMutex

	// Overall metrics
	TotalStartTime time.Time `json:"-"`
	TotalLatencyMs float64   `json:"totalLatencyMs"`

	// Stage metrics in execution order
	Stages []StageTiming `json:"stages"`

	Stem        string `json:"stem"`
	FailedStage string `json:"failedStage,omitempty"`

	// Detailed timing breakdown
	Timings map[string]float64 `json:"timings"`
}

// StageTiming represents metrics for a single pipeline stage
type StageTiming struct {
	Stage     string    `json:"stage"`
	StartTime time.Time `json:"-"`
	LatencyMs float64   `json:"latencyMs"`
	Error     string    `json:"error,omitempty"`
}

// NewPipelineTimings creates a new timings collector
func NewPipelineTimings(stem string) *PipelineTimings {
	return &PipelineTimings{
		TotalStartTime: time.Now(),
		Stem:           stem,
		Stages:         make([]StageTiming, 0, 3),
		Timings:        make(map[string]float64),
	}
}

// StartStage starts timing for a stage
func (m *PipelineTimings) StartStage(stage string) *StageTiming {
	return &StageTiming{
		Stage:     stage,
		StartTime: time.Now(),
	}
}

// EndStage ends timing for a stage
func (m *PipelineTimings) EndStage(st *StageTiming, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st.StartTime.IsZero() {
		return
	}
	st.LatencyMs = float64(time.Since(st.StartTime).Microseconds()) / 1000.0
	if err != nil {
		st.Error = err.Error()
		m.FailedStage = st.Stage
	}
	m.Stages = append(m.Stages, *st)
	m.Timings[st.Stage] = st.LatencyMs
}

// Finalize calculates the total latency
func (m *PipelineTimings) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.TotalStartTime.IsZero() {
		m.TotalLatencyMs = float64(time.Since(m.TotalStartTime).Microseconds()) / 1000.0
		m.Timings["total"] = m.TotalLatencyMs
	}
}

// GetHeaders returns HTTP headers with latency metrics
func (m *PipelineTimings) GetHeaders() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	headers := make(map[string]string)
	headers["X-Latency-Total-Ms"] = formatFloat(m.TotalLatencyMs)

	for _, st := range m.Stages {
		headers["X-Latency-"+headerName(st.Stage)+"-Ms"] = formatFloat(st.LatencyMs)
	}
	if m.FailedStage != "" {
		headers["X-Failed-Stage"] = m.FailedStage
	}
	return headers
}

// headerName turns "dae_converted" into "Dae-Converted"
func headerName(stage string) string {
	parts := strings.Split(stage, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
