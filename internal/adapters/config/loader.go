// Package config provides the bundler.yaml configuration loader.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only bundler.yaml schema version understood.
const SupportedVersion = "1"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a new Loader reading from the OS filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// NewLoaderWithFS creates a new Loader reading from fsys.
func NewLoaderWithFS(logger ports.Logger, fsys FileSystem) *Loader {
	return &Loader{Logger: logger, FS: fsys}
}

// DiscoverRoot walks up from cwd to the directory containing bundler.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Dir(configPath), nil
}

// Load reads bundler.yaml at or above cwd and builds the immutable configuration.
func (l *Loader) Load(cwd string, flags domain.Flags) (*domain.Config, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var file Bundlerfile
	if err := l.readAndUnmarshalYAML(configPath, &file); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	project, err := l.toProject(configPath, &file)
	if err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	cfg, err := domain.NewConfig(project, flags)
	if err != nil {
		return nil, zerr.With(err, "path", configPath)
	}
	return cfg, nil
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	currentDir := filepath.Clean(cwd)
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := l.FS.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// readAndUnmarshalYAML decodes configPath strictly: unknown keys are errors.
// An empty file decodes to the zero value.
func (l *Loader) readAndUnmarshalYAML(configPath string, target *Bundlerfile) error {
	data, err := l.FS.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	return nil
}

func (l *Loader) toProject(configPath string, file *Bundlerfile) (*domain.Project, error) {
	if file.Version != "" && file.Version != SupportedVersion {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unsupported version"), "version", file.Version)
	}

	loaders, err := parseLoaders(file.Loaders)
	if err != nil {
		return nil, err
	}

	bundles, err := parseBundles(file.Bundles)
	if err != nil {
		return nil, err
	}

	pipelines, err := parsePipelines(file.Pipelines)
	if err != nil {
		return nil, err
	}

	commands, err := parseCommands(file.Commands)
	if err != nil {
		return nil, err
	}

	if file.Concurrency < 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "concurrency must not be negative"), "concurrency", file.Concurrency)
	}

	l.warnUnusedCommands(commands, pipelines)
	l.warnDuplicateEntries(file.EntryPoints)

	return &domain.Project{
		Root:        resolveRoot(configPath, file.Root),
		OutDir:      cleanDir(file.OutDir),
		ServeDir:    cleanDir(file.ServeDir),
		Target:      strings.ToLower(file.Target),
		EntryPoints: canonicalizePaths(file.EntryPoints),
		Bundles:     bundles,
		External:    slices.Clone(file.External),
		Loaders:     loaders,
		Pipelines:   pipelines,
		Commands:    commands,
		Define:      maps.Clone(file.Define),
		Concurrency: file.Concurrency,
	}, nil
}

func parseLoaders(in map[string]string) (map[string]domain.Loader, error) {
	out := make(map[string]domain.Loader, len(in))
	for ext, name := range in {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "loader keys must be file extensions"), "extension", ext)
		}
		loader, err := domain.ParseLoader(name)
		if err != nil {
			return nil, zerr.With(err, "extension", ext)
		}
		out[strings.ToLower(ext)] = loader
	}
	return out, nil
}

func parseBundles(in []BundleDTO) ([]domain.BundleSpec, error) {
	seen := make(map[string]bool, len(in))
	out := make([]domain.BundleSpec, 0, len(in))
	for i, b := range in {
		if b.Name == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "bundle has no name"), "index", i)
		}
		if seen[b.Name] {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "duplicate bundle"), "bundle", b.Name)
		}
		if len(b.Entries) == 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "bundle has no entries"), "bundle", b.Name)
		}
		seen[b.Name] = true
		out = append(out, domain.BundleSpec{
			Name:      b.Name,
			Entries:   canonicalizePaths(b.Entries),
			DependsOn: slices.Clone(b.DependsOn),
		})
	}
	return out, nil
}

func parsePipelines(in []PipelineDTO) ([]domain.PipelineSpec, error) {
	out := make([]domain.PipelineSpec, 0, len(in))
	for _, p := range in {
		if p.Pattern == "" || len(p.Transforms) == 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "pipeline needs a pattern and transforms"), "pattern", p.Pattern)
		}
		if _, err := glob.Compile(p.Pattern, '/'); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidPattern.Error()), "pattern", p.Pattern)
		}
		out = append(out, domain.PipelineSpec{Pattern: p.Pattern, Transforms: slices.Clone(p.Transforms)})
	}
	return out, nil
}

func parseCommands(in map[string]CommandDTO) ([]domain.CommandSpec, error) {
	out := make([]domain.CommandSpec, 0, len(in))
	for _, name := range slices.Sorted(maps.Keys(in)) {
		dto := in[name]
		spec := domain.CommandSpec{
			Name: name,
			Run:  slices.Clone(dto.Run),
			Env:  maps.Clone(dto.Env),
		}
		if dto.Loader != "" {
			loader, err := domain.ParseLoader(dto.Loader)
			if err != nil {
				return nil, zerr.With(err, "command", name)
			}
			spec.Loader = loader
		}
		out = append(out, spec)
	}
	return out, nil
}

func (l *Loader) warnUnusedCommands(commands []domain.CommandSpec, pipelines []domain.PipelineSpec) {
	used := make(map[string]bool)
	for _, p := range pipelines {
		for _, name := range p.Transforms {
			used[name] = true
		}
	}
	for _, cmd := range commands {
		if !used[cmd.Name] {
			l.Logger.Warn(fmt.Sprintf("command %q is not used by any pipeline", cmd.Name))
		}
	}
}

func (l *Loader) warnDuplicateEntries(entries []string) {
	seen := make(map[string]bool, len(entries))
	for _, e := range canonicalizePaths(entries) {
		if seen[e] {
			l.Logger.Warn(fmt.Sprintf("entry point %q is listed more than once", e))
		}
		seen[e] = true
	}
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

// canonicalizePaths cleans entry paths into slash separated, root relative form.
func canonicalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		out = append(out, strings.TrimPrefix(p, "./"))
	}
	return out
}

// cleanDir keeps an unset directory unset so that defaults apply.
func cleanDir(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}
