package fs

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ImportScanner = (*Scanner)(nil)

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)

	// import x from './a', import './a', export * from './a', import type { T } from './a'
	staticImport = regexp.MustCompile(`(?m)(?:^|[^.\w$])(?:import|export)\s*(?:[\w*${}\s,]*?\s*from\s*)?["']([^"'\n]+)["']`)
	// import('./a'), require('./a')
	dynamicImport = regexp.MustCompile(`(?:^|[^.\w$])(?:import|require)\s*\(\s*["']([^"'\n]+)["']\s*\)`)
	// @import './a.css', @import url(./a.css)
	cssImport = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']?([^"')\s;]+)["']?\s*\)?`)
)

// ScriptExtensions are the extensions scanned as JavaScript or TypeScript.
var ScriptExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts"}

// resolveExtensions are tried, in order, for extensionless specifiers.
var resolveExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".json", ".css"}

// Scanner discovers the local imports of script and stylesheet modules.
type Scanner struct {
	mu       sync.Mutex
	external map[string]glob.Glob
}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{external: make(map[string]glob.Glob)}
}

// Scan reads the module at path and resolves its relative imports.
// Modules that are neither scripts nor stylesheets have no imports.
func (s *Scanner) Scan(path, root string, external []string) (ports.ImportScan, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var patterns []*regexp.Regexp
	switch {
	case slices.Contains(ScriptExtensions, ext):
		patterns = []*regexp.Regexp{staticImport, dynamicImport}
	case ext == ".css":
		patterns = []*regexp.Regexp{cssImport}
	default:
		return ports.ImportScan{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path is a tracked module
	if err != nil {
		return ports.ImportScan{}, zerr.With(zerr.Wrap(err, domain.ErrScanFailed.Error()), "path", path)
	}
	src := lineComment.ReplaceAllString(blockComment.ReplaceAllString(string(data), ""), "")

	var scan ports.ImportScan
	seen := make(map[string]bool)
	dir := filepath.Dir(path)

	for _, spec := range specifiers(src, patterns) {
		if !isRelative(spec) {
			continue
		}
		isExternal := s.isExternal(spec, external)

		resolved, candidates := resolve(filepath.Join(dir, filepath.FromSlash(spec)))
		if resolved == "" {
			if !isExternal {
				for _, c := range candidates {
					if !seen[c] {
						seen[c] = true
						scan.Unresolved = append(scan.Unresolved, c)
					}
				}
			}
			continue
		}
		if _, err := domain.ModuleKey(root, resolved); err != nil {
			return ports.ImportScan{}, zerr.With(err, "importer", path)
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		if isExternal {
			scan.External = append(scan.External, resolved)
		} else {
			scan.Imports = append(scan.Imports, resolved)
		}
	}
	return scan, nil
}

// specifiers returns the import specifiers of src in source order.
func specifiers(src string, patterns []*regexp.Regexp) []string {
	type hit struct {
		pos  int
		spec string
	}
	var hits []hit
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
			hits = append(hits, hit{pos: m[2], spec: src[m[2]:m[3]]})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		spec := h.spec
		if i := strings.IndexAny(spec, "?#"); i >= 0 {
			spec = spec[:i]
		}
		out = append(out, spec)
	}
	return out
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// resolve finds the file a relative specifier refers to. If none exists it
// returns the candidate paths that would satisfy the import once created.
func resolve(base string) (string, []string) {
	candidates := []string{base}
	if filepath.Ext(base) == "" || !slices.Contains(resolveExtensions, strings.ToLower(filepath.Ext(base))) {
		for _, ext := range resolveExtensions {
			candidates = append(candidates, base+ext)
		}
		for _, ext := range resolveExtensions {
			candidates = append(candidates, filepath.Join(base, "index"+ext))
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", candidates
}

// isExternal matches spec against external patterns the way esbuild does:
// '*' matches any sequence, separators included.
func (s *Scanner) isExternal(spec string, external []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pattern := range external {
		g, ok := s.external[pattern]
		if !ok {
			compiled, err := glob.Compile(pattern)
			if err != nil {
				continue
			}
			s.external[pattern] = compiled
			g = compiled
		}
		if g.Match(spec) || g.Match(filepath.Base(spec)) {
			return true
		}
	}
	return false
}
