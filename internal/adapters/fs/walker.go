// Package fs provides file system adapters for walking, hashing, resolving,
// scanning and writing files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/gobwas/glob"
)

// DefaultIgnores are directory names never descended into.
var DefaultIgnores = []string{".git", ".jj", ".bundler", "node_modules"}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every file below root, skipping DefaultIgnores and any
// entry whose name matches one of the ignore patterns. Yielded paths start with root.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return w.walk(root, ignores, false)
}

// WalkDirs yields every directory below root, root included, with the same
// skipping rules as WalkFiles.
func (w *Walker) WalkDirs(root string, ignores []string) iter.Seq[string] {
	return w.walk(root, ignores, true)
}

func (w *Walker) walk(root string, ignores []string, dirs bool) iter.Seq[string] {
	matchers := compileIgnores(ignores)
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped, the walk goes on.
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}

			if path != root && skip(d.Name(), matchers) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() != dirs {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func compileIgnores(ignores []string) []glob.Glob {
	matchers := make([]glob.Glob, 0, len(DefaultIgnores)+len(ignores))
	for _, pattern := range append(DefaultIgnores[:len(DefaultIgnores):len(DefaultIgnores)], ignores...) {
		g, err := glob.Compile(pattern)
		if err != nil {
			// Invalid patterns match nothing.
			continue
		}
		matchers = append(matchers, g)
	}
	return matchers
}

func skip(name string, matchers []glob.Glob) bool {
	for _, m := range matchers {
		if m.Match(name) {
			return true
		}
	}
	return false
}
