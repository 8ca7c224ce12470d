package domain

import (
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Module is a single source file tracked by the dependency graph.
type Module struct {
	// Key is the slash separated path of the module relative to the project root.
	Key InternedString
	// Fingerprint is the content hash of the module's raw bytes.
	Fingerprint string
	// Dependencies are the module keys this module imports, in declaration order.
	Dependencies []InternedString
	// OutputFingerprint is the output fingerprint of the last successful build
	// of a target this module is an entry of. Empty for non-entry modules.
	OutputFingerprint string
}

// NewModule creates a module with the given key and content fingerprint.
func NewModule(key, fingerprint string) Module {
	return Module{
		Key:         NewInternedString(key),
		Fingerprint: fingerprint,
	}
}

func (m Module) clone() Module {
	m.Dependencies = slices.Clone(m.Dependencies)
	return m
}

// ModuleKey converts an absolute path into a module key relative to root.
func ModuleKey(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, ErrPathOutsideRoot.Error()), "path", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", zerr.With(ErrPathOutsideRoot, "path", path)
	}
	return filepath.ToSlash(rel), nil
}

// ModulePath converts a module key back into an absolute path below root.
func ModulePath(root string, key InternedString) string {
	return filepath.Join(root, filepath.FromSlash(key.String()))
}

// IsPattern reports whether an entry declaration contains glob syntax.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
