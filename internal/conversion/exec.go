package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ToolResult captures one external tool invocation.
type ToolResult struct {
	Tool       string        `json:"tool"`
	OutputPath string        `json:"output_path"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
}

// runTool starts binary with args and waits for it. A non-zero exit is
// reported through the returned exit code, not the error.
func runTool(ctx context.Context, binary string, args []string, dir string) (*ToolResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ToolResult{
		Tool:     filepath.Base(binary),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		if exitErr := (*exec.ExitError)(nil); errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, err
	}
	return result, nil
}

// resolveBinary reports whether binary can be executed. Bare names are
// looked up on PATH.
func resolveBinary(binary string) (string, bool) {
	if binary == "" {
		return "", false
	}
	if !strings.ContainsRune(binary, os.PathSeparator) {
		resolved, err := exec.LookPath(binary)
		if err != nil {
			return "", false
		}
		return resolved, true
	}
	info, err := os.Stat(binary)
	if err != nil || info.IsDir() {
		return "", false
	}
	return binary, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ensureWritableDir creates dir if needed and checks it by creating a temp file.
func ensureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return err
	}
	name := check.Name()
	check.Close()
	return os.Remove(name)
}

// moveFile renames src to dst, falling back to copy and delete when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Remove(src)
}
