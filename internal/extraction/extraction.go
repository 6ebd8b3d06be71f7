// Package extraction unpacks compressed IFC uploads.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

var (
	// ErrNoModel is returned when an archive holds no .ifc file.
	ErrNoModel = errors.New("archive contains no .ifc file")

	// ErrMultipleModels is returned when an archive holds more than one .ifc file.
	ErrMultipleModels = errors.New("archive contains more than one .ifc file")

	// ErrTooLarge is returned when the extracted model exceeds the size limit.
	ErrTooLarge = errors.New("extracted model exceeds size limit")
)

var archiveExts = []string{".ifczip", ".zip"}

// IsArchive reports whether filename names a compressed IFC upload.
func IsArchive(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range archiveExts {
		if ext == e {
			return true
		}
	}
	return false
}

// ExtractIFC copies the single .ifc file inside archivePath into destDir and
// returns its path. Other archive members are ignored. When maxBytes is
// positive, a model larger than maxBytes fails with ErrTooLarge.
func ExtractIFC(ctx context.Context, archivePath, destDir string, maxBytes int64) (string, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	var model string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), ".ifc") {
			return nil
		}
		if strings.HasPrefix(path.Base(p), "._") {
			return nil
		}
		if model != "" {
			return ErrMultipleModels
		}
		model = p
		return nil
	})
	if err != nil {
		return "", err
	}
	if model == "" {
		return "", ErrNoModel
	}

	reader, err := fsys.Open(model)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	destPath := filepath.Join(destDir, path.Base(model))
	outFile, err := os.Create(destPath)
	if err != nil {
		return "", err
	}

	src := io.Reader(reader)
	if maxBytes > 0 {
		src = io.LimitReader(reader, maxBytes+1)
	}
	n, err := io.Copy(outFile, src)
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path.Base(model), maxBytes)
	}
	if closeErr := outFile.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", path.Base(model), closeErr)
	}
	if err != nil {
		os.Remove(destPath)
		return "", err
	}
	return destPath, nil
}
