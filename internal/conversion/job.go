package conversion

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Artifact extensions. All artifacts of one job share a stem and a directory.
const (
	ExtIFC = ".ifc"
	ExtDAE = ".dae"
	ExtOBJ = ".obj"
)

// Stage is the furthest point a conversion job has reached.
type Stage string

const (
	StageUploaded     Stage = "uploaded"
	StageDaeConverted Stage = "dae_converted"
	StageObjConverted Stage = "obj_converted"
	StageTagged       Stage = "tagged"
)

// Next returns the stage that follows s, or "" after StageTagged.
func (s Stage) Next() Stage {
	switch s {
	case StageUploaded:
		return StageDaeConverted
	case StageDaeConverted:
		return StageObjConverted
	case StageObjConverted:
		return StageTagged
	}
	return ""
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageUploaded, StageDaeConverted, StageObjConverted, StageTagged:
		return true
	}
	return false
}

// Job tracks one pipeline run. It lives only for the duration of Run.
type Job struct {
	Stem        string
	Stage       Stage
	ToolOutputs []ToolResult
	StartedAt   time.Time
}

// advance moves the job one stage forward. Stages never go backwards.
func (j *Job) advance(to Stage) error {
	if j.Stage.Next() != to {
		return fmt.Errorf("invalid stage transition %s -> %s", j.Stage, to)
	}
	j.Stage = to
	return nil
}

// Stdout joins captured stdout of every tool run so far.
func (j *Job) Stdout() string {
	parts := make([]string, 0, len(j.ToolOutputs))
	for _, out := range j.ToolOutputs {
		if out.Stdout != "" {
			parts = append(parts, out.Stdout)
		}
	}
	return strings.Join(parts, "\n")
}

// Stderr joins captured stderr of every tool run so far.
func (j *Job) Stderr() string {
	parts := make([]string, 0, len(j.ToolOutputs))
	for _, out := range j.ToolOutputs {
		if out.Stderr != "" {
			parts = append(parts, out.Stderr)
		}
	}
	return strings.Join(parts, "\n")
}

// ArtifactPath returns {dir}/{stem}{ext}.
func ArtifactPath(dir, stem, ext string) string {
	return filepath.Join(dir, stem+ext)
}

// StemOf strips directory and extension from path.
func StemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidateStem rejects stems that could escape the artifact directory.
func ValidateStem(stem string) error {
	switch {
	case stem == "", stem == ".", stem == "..":
		return fmt.Errorf("invalid stem %q", stem)
	case strings.ContainsAny(stem, `/\`), strings.ContainsRune(stem, 0):
		return fmt.Errorf("stem %q must not contain path separators", stem)
	}
	return nil
}
