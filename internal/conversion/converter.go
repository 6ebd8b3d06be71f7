package conversion

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ElementNamesFlag asks IfcConvert to name output nodes after IFC element names.
const ElementNamesFlag = "--use-element-names"

// Converter turns the IFC artifact of a stem into its DAE artifact.
type Converter interface {
	ConvertToIntermediate(ctx context.Context, stem string) (*ToolResult, error)
}

// IfcConverter runs the IfcConvert binary. The tool writes into WorkDir and
// the result is moved into ArtifactDir afterwards.
type IfcConverter struct {
	Binary      string
	ArtifactDir string
	WorkDir     string
	logger      *zap.Logger
}

// NewIfcConverter creates an IfcConverter.
func NewIfcConverter(binary, artifactDir, workDir string, logger *zap.Logger) *IfcConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IfcConverter{
		Binary:      binary,
		ArtifactDir: artifactDir,
		WorkDir:     workDir,
		logger:      logger,
	}
}

// ConvertToIntermediate converts {stem}.ifc to {stem}.dae. The returned
// result's OutputPath is the DAE path inside ArtifactDir.
func (c *IfcConverter) ConvertToIntermediate(ctx context.Context, stem string) (*ToolResult, error) {
	binary, ok := resolveBinary(c.Binary)
	if !ok {
		return nil, preconditionError(ReasonConverterMissing, c.Binary)
	}
	source := ArtifactPath(c.ArtifactDir, stem, ExtIFC)
	if !fileExists(source) {
		return nil, preconditionError(ReasonSourceMissing, source)
	}
	if err := ensureWritableDir(c.WorkDir); err != nil {
		return nil, &Error{Kind: KindPreconditionNotMet, Op: ReasonOutputNotWritable, Path: c.WorkDir, Err: err}
	}
	if err := ensureWritableDir(c.ArtifactDir); err != nil {
		return nil, &Error{Kind: KindPreconditionNotMet, Op: ReasonOutputNotWritable, Path: c.ArtifactDir, Err: err}
	}

	staged := filepath.Join(c.WorkDir, stem+ExtDAE)
	// IfcConvert refuses to replace an existing output file.
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		return nil, storageError("remove stale staging output", staged, err)
	}

	c.logger.Info("running converter",
		zap.String("stem", stem),
		zap.String("binary", binary),
		zap.String("input", source),
		zap.String("output", staged))

	result, err := runTool(ctx, binary, []string{source, staged, ElementNamesFlag}, c.WorkDir)
	if err != nil {
		return result, toolError("start converter", "", err)
	}
	c.logger.Debug("converter finished",
		zap.String("stem", stem),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.String("stdout", result.Stdout),
		zap.String("stderr", result.Stderr))
	if result.ExitCode != 0 {
		return result, toolError("converter exited with non-zero status", result.Stderr, nil)
	}
	if !fileExists(staged) {
		return result, notProducedError("converter did not write its output", staged)
	}

	target := ArtifactPath(c.ArtifactDir, stem, ExtDAE)
	if err := moveFile(staged, target); err != nil {
		return result, storageError("move converter output into artifact directory", target, err)
	}
	result.OutputPath = target
	return result, nil
}
