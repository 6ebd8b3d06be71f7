package conversion

import (
	"errors"
	"fmt"

	"ifc-service/internal/objtag"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindPreconditionNotMet   Kind = "PRECONDITION_NOT_MET"
	KindExternalToolFailed   Kind = "EXTERNAL_TOOL_FAILED"
	KindArtifactNotProduced  Kind = "ARTIFACT_NOT_PRODUCED"
	KindNoMatchingIdentifier Kind = "NO_MATCHING_IDENTIFIER"
	KindStorageFailed        Kind = "STORAGE_FAILED"
)

var (
	// ErrPreconditionNotMet matches errors raised before a tool is spawned.
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrExternalToolFailed matches non-zero tool exits.
	ErrExternalToolFailed = errors.New("external tool failed")

	// ErrArtifactNotProduced matches tools that exited cleanly without writing their output.
	ErrArtifactNotProduced = errors.New("artifact not produced")

	// ErrNoMatchingIdentifier matches rename updates addressing an unknown tag.
	ErrNoMatchingIdentifier = objtag.ErrNoMatchingIdentifier
)

// Precondition reasons.
const (
	ReasonConverterMissing   = "converter binary missing"
	ReasonModelerMissing     = "modeler binary missing"
	ReasonSourceMissing      = "source artifact missing"
	ReasonOutputNotWritable  = "output directory not writable"
	ReasonIntermediateAbsent = "intermediate artifact missing"
)

// Error is the single structured failure surfaced by the pipeline.
type Error struct {
	Kind   Kind
	Stage  Stage
	Op     string
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an *Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPreconditionNotMet:
		return e.Kind == KindPreconditionNotMet
	case ErrExternalToolFailed:
		return e.Kind == KindExternalToolFailed
	case ErrArtifactNotProduced:
		return e.Kind == KindArtifactNotProduced
	case ErrNoMatchingIdentifier:
		return e.Kind == KindNoMatchingIdentifier
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	if errors.Is(err, objtag.ErrNoMatchingIdentifier) {
		return KindNoMatchingIdentifier
	}
	return ""
}

func preconditionError(op, path string) *Error {
	return &Error{Kind: KindPreconditionNotMet, Op: op, Path: path}
}

func toolError(op, stderr string, cause error) *Error {
	return &Error{Kind: KindExternalToolFailed, Op: op, Stderr: stderr, Err: cause}
}

func notProducedError(op, path string) *Error {
	return &Error{Kind: KindArtifactNotProduced, Op: op, Path: path}
}

func storageError(op, path string, cause error) *Error {
	return &Error{Kind: KindStorageFailed, Op: op, Path: path, Err: cause}
}
