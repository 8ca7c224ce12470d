package transform

import (
	"context"
	"os"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/zerr"
)

// FileName is the name of the asset copy transform.
const FileName = "file"

// File passes the bytes of an entry through unchanged.
type File struct{}

// NewFile creates the asset copy transform.
func NewFile() *File {
	return &File{}
}

// Name implements ports.Transform.
func (*File) Name() string { return FileName }

// Apply reads the source file when the unit has not been loaded yet.
func (*File) Apply(_ context.Context, in domain.Unit, _ *domain.Config) (domain.Unit, error) {
	if in.Contents != nil {
		return in, nil
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return domain.Unit{}, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", in.Path)
	}
	if data == nil {
		data = []byte{}
	}
	in.Contents = data
	if in.Loader == "" {
		in.Loader = domain.LoaderFile
	}
	return in, nil
}

// OutputLoader keeps the loader of the input.
func (*File) OutputLoader(in domain.Loader, _ *domain.Config) domain.Loader {
	if in == "" {
		return domain.LoaderFile
	}
	return in
}
