package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidKey is returned for keys that would escape the base directory.
	ErrInvalidKey = errors.New("invalid key: path traversal detected")

	// ErrTooLarge is returned by Save when the input exceeds its limit.
	ErrTooLarge = errors.New("artifact exceeds size limit")
)

// ArtifactStore keeps pipeline artifacts ({stem}.ifc, .dae, .obj) in one
// local directory shared with the conversion tools.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore creates the base directory if needed.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &ArtifactStore{baseDir: baseDir}, nil
}

// BaseDir returns the directory artifacts live in.
func (s *ArtifactStore) BaseDir() string { return s.baseDir }

// Path returns the absolute location of key inside the store.
func (s *ArtifactStore) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", ErrInvalidKey
	}
	path := filepath.Join(s.baseDir, key)
	rel, err := filepath.Rel(filepath.Clean(s.baseDir), path)
	if err != nil || rel == "." || rel == ".." {
		return "", ErrInvalidKey
	}
	return path, nil
}

// Exists checks if a file exists at the given key.
func (s *ArtifactStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// Open returns a reader for the file at key. A missing file yields an error
// satisfying os.IsNotExist.
func (s *ArtifactStore) Open(ctx context.Context, key string) (*os.File, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Save streams r into key atomically and returns the number of bytes
// written. At most limit bytes are accepted when limit is positive.
func (s *ArtifactStore) Save(ctx context.Context, key string, r io.Reader, limit int64) (int64, error) {
	path, err := s.Path(key)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.baseDir, "."+key+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return n, errors.Wrapf(err, "write %s", key)
	}
	if limit > 0 && n > limit {
		tmp.Close()
		return n, errors.Wrapf(ErrTooLarge, "%s exceeds %d bytes", key, limit)
	}
	if err := tmp.Close(); err != nil {
		return n, errors.Wrapf(err, "close %s", key)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return n, errors.Wrapf(err, "chmod %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, errors.Wrapf(err, "rename into %s", key)
	}
	return n, nil
}

// Import moves a file from outside the store to key.
func (s *ArtifactStore) Import(ctx context.Context, src, key string) error {
	dst, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer f.Close()
	if _, err := s.Save(ctx, key, f, 0); err != nil {
		return err
	}
	return os.Remove(src)
}

// Delete removes the given keys. Missing files are ignored.
func (s *ArtifactStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		path, err := s.Path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", key)
		}
	}
	return nil
}
