package conversion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ifc-service/internal/metrics"
	"ifc-service/internal/objtag"
)

// Config locates the external tools and the artifact directories.
type Config struct {
	ConverterPath string
	ModelerPath   string
	ArtifactDir   string
	WorkDir       string
}

// Validate checks that every field is set.
func (c Config) Validate() error {
	switch {
	case c.ConverterPath == "":
		return fmt.Errorf("converter path is required")
	case c.ModelerPath == "":
		return fmt.Errorf("modeler path is required")
	case c.ArtifactDir == "":
		return fmt.Errorf("artifact directory is required")
	case c.WorkDir == "":
		return fmt.Errorf("work directory is required")
	}
	return nil
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordStage(stage string, d time.Duration)
	RecordFailure(stage, kind string)
	RecordRun(result string)
	RecordRename(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(string, time.Duration) {}
func (nopRecorder) RecordFailure(string, string)      {}
func (nopRecorder) RecordRun(string)                  {}
func (nopRecorder) RecordRename(string)               {}

// Result is returned by Run. On failure it still carries the stage reached
// and the tool output captured so far.
type Result struct {
	Stem        string                   `json:"stem"`
	Stage       Stage                    `json:"stage"`
	IfcPath     string                   `json:"ifc_path"`
	DaePath     string                   `json:"dae_path,omitempty"`
	MeshPath    string                   `json:"mesh_path,omitempty"`
	Stdout      string                   `json:"stdout"`
	Stderr      string                   `json:"stderr"`
	ObjectCount int                      `json:"object_count"`
	Timings     *metrics.PipelineTimings `json:"timings"`
}

// Pipeline runs converter, modeler and tagger in that order, once each.
// It holds no per-stem locks; callers serialize runs of the same stem.
type Pipeline struct {
	cfg       Config
	converter Converter
	modeler   Modeler
	recorder  Recorder
	observer  func(Job)
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithConverter replaces the IfcConvert adapter.
func WithConverter(c Converter) Option { return func(p *Pipeline) { p.converter = c } }

// WithModeler replaces the Blender adapter.
func WithModeler(m Modeler) Option { return func(p *Pipeline) { p.modeler = m } }

// WithRecorder sets the measurement sink.
func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithObserver registers fn to be called after every stage transition.
func WithObserver(fn func(Job)) Option { return func(p *Pipeline) { p.observer = fn } }

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.converter == nil {
		p.converter = NewIfcConverter(cfg.ConverterPath, cfg.ArtifactDir, cfg.WorkDir, logger)
	}
	if p.modeler == nil {
		p.modeler = NewBlenderModeler(cfg.ModelerPath, cfg.ArtifactDir, logger)
	}
	return p, nil
}

// ArtifactDir returns the directory shared by all artifacts.
func (p *Pipeline) ArtifactDir() string { return p.cfg.ArtifactDir }

// Run converts {stem}.ifc to a tagged {stem}.obj. A failing stage stops the
// run; artifacts of completed stages are left on disk.
func (p *Pipeline) Run(ctx context.Context, stem string) (*Result, error) {
	job := &Job{Stem: stem, Stage: StageUploaded, StartedAt: time.Now()}
	timings := metrics.NewPipelineTimings(stem)
	result := &Result{
		Stem:    stem,
		Stage:   job.Stage,
		IfcPath: ArtifactPath(p.cfg.ArtifactDir, stem, ExtIFC),
		Timings: timings,
	}

	if err := ValidateStem(stem); err != nil {
		return result, p.fail(job, result, StageDaeConverted, &Error{Kind: KindPreconditionNotMet, Op: "invalid stem", Err: err})
	}

	p.logger.Info("pipeline started", zap.String("stem", stem))

	// IFC -> DAE
	st := timings.StartStage(string(StageDaeConverted))
	daeResult, err := p.converter.ConvertToIntermediate(ctx, stem)
	p.capture(job, result, daeResult)
	p.endStage(timings, st, err)
	if err != nil {
		return result, p.fail(job, result, StageDaeConverted, err)
	}
	result.DaePath = daeResult.OutputPath
	p.advance(job, result, StageDaeConverted)

	// DAE -> OBJ
	st = timings.StartStage(string(StageObjConverted))
	objResult, err := p.modeler.ConvertToMesh(ctx, filepath.Base(result.DaePath))
	p.capture(job, result, objResult)
	p.endStage(timings, st, err)
	if err != nil {
		return result, p.fail(job, result, StageObjConverted, err)
	}
	result.MeshPath = objResult.OutputPath
	p.advance(job, result, StageObjConverted)

	// Tag object declarations
	st = timings.StartStage(string(StageTagged))
	count, err := objtag.Tag(result.MeshPath)
	if err != nil {
		err = storageError("tag mesh objects", result.MeshPath, err)
	}
	p.endStage(timings, st, err)
	if err != nil {
		return result, p.fail(job, result, StageTagged, err)
	}
	result.ObjectCount = count
	p.advance(job, result, StageTagged)

	timings.Finalize()
	p.recorder.RecordRun("success")
	p.logger.Info("pipeline finished",
		zap.String("stem", stem),
		zap.String("mesh", result.MeshPath),
		zap.Int("objects", count),
		zap.Float64("total_ms", timings.TotalLatencyMs))
	return result, nil
}

// ApplyRenames renames tagged objects of the mesh at meshPath.
func (p *Pipeline) ApplyRenames(meshPath string, updates []objtag.Update, opts objtag.RewriteOptions) (*objtag.RewriteReport, error) {
	report, err := objtag.Rewrite(meshPath, updates, opts)
	switch {
	case err != nil && errors.Is(err, objtag.ErrNoMatchingIdentifier):
		p.recorder.RecordRename("unmatched")
	case err != nil:
		p.recorder.RecordRename("error")
	default:
		p.recorder.RecordRename("success")
		if len(report.Unmatched) > 0 {
			p.logger.Warn("rename skipped unknown tags",
				zap.String("mesh", meshPath),
				zap.Ints("ids", report.Unmatched))
		}
	}
	return report, err
}

func (p *Pipeline) capture(job *Job, result *Result, tool *ToolResult) {
	if tool == nil {
		return
	}
	job.ToolOutputs = append(job.ToolOutputs, *tool)
	result.Stdout = job.Stdout()
	result.Stderr = job.Stderr()
}

func (p *Pipeline) endStage(timings *metrics.PipelineTimings, st *metrics.StageTiming, err error) {
	timings.EndStage(st, err)
	p.recorder.RecordStage(st.Stage, time.Duration(st.LatencyMs*float64(time.Millisecond)))
}

func (p *Pipeline) advance(job *Job, result *Result, to Stage) {
	if err := job.advance(to); err != nil {
		p.logger.DPanic("stage transition", zap.Error(err))
	}
	result.Stage = job.Stage
	p.logger.Debug("stage reached", zap.String("stem", job.Stem), zap.String("stage", string(to)))
	if p.observer != nil {
		p.observer(*job)
	}
}

// fail normalizes err to *Error tagged with the stage that could not be reached.
func (p *Pipeline) fail(job *Job, result *Result, target Stage, err error) error {
	var cErr *Error
	if !errors.As(err, &cErr) {
		cErr = toolError(string(target), "", err)
	}
	cErr.Stage = target

	result.Timings.Finalize()
	p.recorder.RecordFailure(string(target), string(cErr.Kind))
	p.recorder.RecordRun("failure")
	p.logger.Error("pipeline failed",
		zap.String("stem", job.Stem),
		zap.String("parked_at", string(job.Stage)),
		zap.String("failed_stage", string(target)),
		zap.String("kind", string(cErr.Kind)),
		zap.Error(cErr))
	return cErr
}
