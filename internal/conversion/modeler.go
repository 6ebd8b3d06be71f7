package conversion

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// importExportScript resets Blender to an empty scene, imports the DAE given
// as the first argument after "--" and exports the OBJ given as the second.
// Paths never appear inside the script itself.
const importExportScript = `import sys, bpy
argv = sys.argv[sys.argv.index("--") + 1:]
bpy.ops.wm.read_factory_settings(use_empty=True)
bpy.ops.wm.collada_import(filepath=argv[0])
bpy.ops.wm.obj_export(filepath=argv[1])
`

// Modeler turns a DAE artifact into an OBJ artifact.
type Modeler interface {
	ConvertToMesh(ctx context.Context, intermediateFilename string) (*ToolResult, error)
}

// BlenderModeler runs Blender headless over artifacts in ArtifactDir.
type BlenderModeler struct {
	Binary      string
	ArtifactDir string
	logger      *zap.Logger
}

// NewBlenderModeler creates a BlenderModeler.
func NewBlenderModeler(binary, artifactDir string, logger *zap.Logger) *BlenderModeler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlenderModeler{
		Binary:      binary,
		ArtifactDir: artifactDir,
		logger:      logger,
	}
}

// BlenderArgs returns the argument list for converting input to output.
func BlenderArgs(input, output string) []string {
	return []string{
		"--background",
		"--factory-startup",
		"--python-expr", importExportScript,
		"--", input, output,
	}
}

// ConvertToMesh converts the DAE artifact named intermediateFilename (a file
// name inside ArtifactDir) to an OBJ with the same stem. A zero exit status
// is not trusted: the OBJ must exist afterwards.
func (m *BlenderModeler) ConvertToMesh(ctx context.Context, intermediateFilename string) (*ToolResult, error) {
	binary, ok := resolveBinary(m.Binary)
	if !ok {
		return nil, preconditionError(ReasonModelerMissing, m.Binary)
	}
	input := filepath.Join(m.ArtifactDir, filepath.Base(intermediateFilename))
	if !fileExists(input) {
		return nil, preconditionError(ReasonIntermediateAbsent, input)
	}
	if err := ensureWritableDir(m.ArtifactDir); err != nil {
		return nil, &Error{Kind: KindPreconditionNotMet, Op: ReasonOutputNotWritable, Path: m.ArtifactDir, Err: err}
	}

	output := ArtifactPath(m.ArtifactDir, StemOf(input), ExtOBJ)
	// A leftover OBJ from an earlier run would satisfy the existence check below.
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		return nil, storageError("remove stale mesh", output, err)
	}

	m.logger.Info("running modeler",
		zap.String("binary", binary),
		zap.String("input", input),
		zap.String("output", output))

	result, err := runTool(ctx, binary, BlenderArgs(input, output), m.ArtifactDir)
	if err != nil {
		return result, toolError("start modeler", "", err)
	}
	m.logger.Debug("modeler finished",
		zap.String("input", input),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.String("stdout", result.Stdout),
		zap.String("stderr", result.Stderr))
	if result.ExitCode != 0 {
		return result, toolError("modeler exited with non-zero status", result.Stderr, nil)
	}
	if !fileExists(output) {
		return result, notProducedError("modeler exited cleanly without writing the mesh", output)
	}
	result.OutputPath = output
	return result, nil
}
