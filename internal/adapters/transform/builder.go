// Package transform implements the transform pipelines that turn entry
// modules into artifacts.
package transform

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builder implements ports.TargetBuilder on top of a table of named transforms.
//
// Built-in transforms are registered at construction. Command transforms are
// looked up in the configuration of each request.
type Builder struct {
	executor ports.Executor
	builtins map[string]ports.Transform

	mu       sync.Mutex
	compiled map[string]glob.Glob
}

// NewBuilder creates a builder with the esbuild and file transforms.
// executor runs the command transforms declared by the configuration.
func NewBuilder(executor ports.Executor) *Builder {
	b := &Builder{
		executor: executor,
		builtins: make(map[string]ports.Transform),
		compiled: make(map[string]glob.Glob),
	}
	b.Register(NewESBuild())
	b.Register(NewFile())
	return b
}

// Register adds a transform to the table, replacing one of the same name.
func (b *Builder) Register(t ports.Transform) {
	b.builtins[t.Name()] = t
}

// Validate checks that every pipeline pattern compiles, that every transform
// a pipeline names exists and that the language target is supported.
func (b *Builder) Validate(cfg *domain.Config) error {
	if _, err := parseTarget(cfg.Target()); err != nil {
		return err
	}
	for _, p := range cfg.Pipelines() {
		if _, err := b.pattern(p.Pattern); err != nil {
			return err
		}
		if len(p.Transforms) == 0 {
			return zerr.With(zerr.With(domain.ErrInvalidConfig, "pipeline", p.Pattern), "reason", "no transforms")
		}
		for _, name := range p.Transforms {
			if _, err := b.lookup(name, cfg); err != nil {
				return zerr.With(err, "pipeline", p.Pattern)
			}
		}
	}
	return nil
}

// OutputExtension returns the extension of the artifact built from the entry at path.
func (b *Builder) OutputExtension(path string, cfg *domain.Config) (string, error) {
	chain, loader, err := b.pipeline(path, cfg)
	if err != nil {
		return "", err
	}
	for _, t := range chain {
		loader = t.OutputLoader(loader, cfg)
	}
	return loader.OutputExtension(filepath.Ext(path)), nil
}

// Build runs the pipeline of each entry and concatenates the results in entry order.
func (b *Builder) Build(ctx context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
	cfg := req.Config

	var out bytes.Buffer
	for _, entry := range req.Entries {
		contents, err := b.buildEntry(ctx, entry, cfg)
		if err != nil {
			return nil, zerr.With(err, "target", req.Target)
		}
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
			out.WriteByte('\n')
		}
		out.Write(contents)
	}

	return domain.NewArtifact(req.Target, req.Output, out.Bytes()), nil
}

func (b *Builder) buildEntry(ctx context.Context, entry string, cfg *domain.Config) ([]byte, error) {
	rel := entry
	if key, err := domain.ModuleKey(cfg.Root(), entry); err == nil {
		rel = key
	}

	chain, loader, err := b.pipeline(entry, cfg)
	if err != nil {
		return nil, err
	}

	unit := domain.Unit{Path: entry, Loader: loader}
	for _, t := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, err = t.Apply(ctx, unit, cfg)
		if err != nil {
			return nil, zerr.With(zerr.With(err, "transform", t.Name()), "entry", rel)
		}
	}

	if unit.Contents == nil {
		return nil, zerr.With(domain.ErrEmptyOutput, "entry", rel)
	}
	return unit.Contents, nil
}

// pipeline selects the transform chain of an entry and its initial loader.
// The first user pipeline whose pattern matches the base name or the root
// relative path wins. Otherwise the loader decides: file assets are copied and
// everything else goes through esbuild.
func (b *Builder) pipeline(path string, cfg *domain.Config) ([]ports.Transform, domain.Loader, error) {
	loader, known := cfg.LoaderFor(path)

	rel := filepath.Base(path)
	if key, err := domain.ModuleKey(cfg.Root(), path); err == nil {
		rel = key
	}

	for _, p := range cfg.Pipelines() {
		g, err := b.pattern(p.Pattern)
		if err != nil {
			return nil, "", err
		}
		if !g.Match(filepath.Base(path)) && !g.Match(rel) {
			continue
		}
		chain := make([]ports.Transform, 0, len(p.Transforms))
		for _, name := range p.Transforms {
			t, err := b.lookup(name, cfg)
			if err != nil {
				return nil, "", zerr.With(err, "pipeline", p.Pattern)
			}
			chain = append(chain, t)
		}
		return chain, loader, nil
	}

	if !known {
		return nil, "", zerr.With(domain.ErrNoPipeline, "entry", rel)
	}
	if loader == domain.LoaderFile {
		return []ports.Transform{b.builtins[FileName]}, loader, nil
	}
	return []ports.Transform{b.builtins[ESBuildName]}, loader, nil
}

func (b *Builder) lookup(name string, cfg *domain.Config) (ports.Transform, error) {
	if spec, ok := cfg.Command(name); ok {
		return NewCommand(spec, b.executor), nil
	}
	if t, ok := b.builtins[name]; ok {
		return t, nil
	}
	return nil, zerr.With(domain.ErrUnknownTransform, "transform", name)
}

func (b *Builder) pattern(p string) (glob.Glob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if g, ok := b.compiled[p]; ok {
		return g, nil
	}
	g, err := glob.Compile(strings.TrimPrefix(p, "./"), '/')
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidPattern.Error()), "pattern", p)
	}
	b.compiled[p] = g
	return g, nil
}
