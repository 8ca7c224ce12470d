package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.EntryResolver = (*Resolver)(nil)

// Resolver expands entry point declarations with gobwas/glob patterns.
// Patterns use '/' as separator, so '*' stays within a directory and '**'
// crosses directories.
type Resolver struct {
	walker *Walker

	mu       sync.Mutex
	compiled map[string]glob.Glob
}

// NewResolver creates a new Resolver.
func NewResolver(walker *Walker) *Resolver {
	return &Resolver{walker: walker, compiled: make(map[string]glob.Glob)}
}

// ResolveEntries expands literal paths and patterns relative to root into
// absolute paths. Literal paths come first in declaration order, then the
// sorted matches of every pattern. Duplicates are dropped.
func (r *Resolver) ResolveEntries(patterns []string, root string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	var globs []glob.Glob
	for _, pattern := range patterns {
		if domain.IsPattern(pattern) {
			g, err := r.compile(pattern)
			if err != nil {
				return nil, err
			}
			globs = append(globs, g)
			continue
		}

		path := filepath.Join(root, filepath.FromSlash(pattern))
		if _, err := domain.ModuleKey(root, path); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil, zerr.With(domain.ErrEntryNotFound, "path", pattern)
			}
			return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
		}
		if info.IsDir() {
			return nil, zerr.With(zerr.Wrap(domain.ErrEntryNotFound, "entry point is a directory"), "path", pattern)
		}
		add(path)
	}

	if len(globs) == 0 {
		return result, nil
	}

	var matches []string
	for path := range r.walker.WalkFiles(root, nil) {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if slices.ContainsFunc(globs, func(g glob.Glob) bool { return g.Match(rel) }) {
			matches = append(matches, path)
		}
	}
	slices.Sort(matches)
	for _, m := range matches {
		add(m)
	}
	return result, nil
}

// Match reports whether the slash separated path rel matches any of the
// patterns. Literal patterns match only themselves.
func (r *Resolver) Match(patterns []string, rel string) (bool, error) {
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if !domain.IsPattern(pattern) {
			if strings.TrimPrefix(filepath.ToSlash(filepath.Clean(pattern)), "./") == rel {
				return true, nil
			}
			continue
		}
		g, err := r.compile(pattern)
		if err != nil {
			return false, err
		}
		if g.Match(rel) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) compile(pattern string) (glob.Glob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.compiled[pattern]; ok {
		return g, nil
	}
	g, err := glob.Compile(strings.TrimPrefix(pattern, "./"), '/')
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidPattern.Error()), "pattern", pattern)
	}
	r.compiled[pattern] = g
	return g, nil
}
