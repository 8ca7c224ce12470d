package fs

import (
	"bytes"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputWriter = (*Writer)(nil)

// Writer materializes artifacts in the output directory.
type Writer struct{}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write stores the artifact below dir. Files already holding the same bytes
// are left untouched so that their modification time does not change.
func (w *Writer) Write(dir string, artifact *domain.Artifact) error {
	path, err := outputPath(dir, artifact.Path)
	if err != nil {
		return err
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, artifact.Contents) { //nolint:gosec // Path is below the output directory
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(artifact.Contents); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	return nil
}

// Remove deletes the artifact at rel below dir. A missing file is not an error.
func (w *Writer) Remove(dir, rel string) error {
	path, err := outputPath(dir, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	return nil
}

// Clean removes dir and everything below it.
func (w *Writer) Clean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", dir)
	}
	return nil
}

func outputPath(dir, rel string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if _, err := domain.ModuleKey(dir, path); err != nil {
		return "", zerr.With(err, "artifact", rel)
	}
	return path, nil
}
