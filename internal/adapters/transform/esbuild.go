package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

// ESBuildName is the name of the esbuild transform.
const ESBuildName = "esbuild"

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var loaders = map[domain.Loader]api.Loader{
	domain.LoaderJS:   api.LoaderJS,
	domain.LoaderJSX:  api.LoaderJSX,
	domain.LoaderTS:   api.LoaderTS,
	domain.LoaderTSX:  api.LoaderTSX,
	domain.LoaderCSS:  api.LoaderCSS,
	domain.LoaderJSON: api.LoaderJSON,
	domain.LoaderText: api.LoaderText,
	domain.LoaderFile: api.LoaderFile,
}

func parseTarget(s string) (api.Target, error) {
	t, ok := targets[strings.ToLower(s)]
	if !ok {
		return 0, zerr.With(zerr.With(domain.ErrInvalidConfig, "target", s), "reason", "unsupported language target")
	}
	return t, nil
}

// ESBuild bundles JavaScript, TypeScript and CSS with esbuild.
type ESBuild struct{}

// NewESBuild creates the esbuild transform.
func NewESBuild() *ESBuild {
	return &ESBuild{}
}

// Name implements ports.Transform.
func (*ESBuild) Name() string { return ESBuildName }

// OutputLoader reports css for stylesheets and js for everything else.
func (*ESBuild) OutputLoader(in domain.Loader, _ *domain.Config) domain.Loader {
	if in == domain.LoaderCSS {
		return domain.LoaderCSS
	}
	return domain.LoaderJS
}

// Apply bundles the unit into a single IIFE script or stylesheet.
// A unit that was already loaded is fed to esbuild through stdin so that
// relative imports still resolve against the source directory.
func (e *ESBuild) Apply(ctx context.Context, in domain.Unit, cfg *domain.Config) (domain.Unit, error) {
	target, err := parseTarget(cfg.Target())
	if err != nil {
		return domain.Unit{}, err
	}

	opts := api.BuildOptions{
		AbsWorkingDir:     cfg.Root(),
		Outdir:            cfg.OutDirPath(),
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Target:            target,
		MinifyWhitespace:  cfg.Minify(),
		MinifyIdentifiers: cfg.Minify(),
		MinifySyntax:      cfg.Minify(),
		Define:            cfg.Defines(),
		External:          cfg.External(),
		Loader:            apiLoaders(cfg.Loaders()),
		LogLevel:          api.LogLevelSilent,
	}
	if cfg.Sourcemap() == domain.SourcemapInline {
		opts.Sourcemap = api.SourceMapInline
	}

	if in.Contents == nil {
		opts.EntryPoints = []string{in.Path}
	} else {
		opts.Stdin = &api.StdinOptions{
			Contents:   string(in.Contents),
			ResolveDir: filepath.Dir(in.Path),
			Sourcefile: in.Path,
			Loader:     loaders[in.Loader],
		}
	}

	result := api.Build(opts)
	writeMessages(ports.OutputFromContext(ctx), "warning", result.Warnings)
	if len(result.Errors) > 0 {
		return domain.Unit{}, errors.New(formatMessages(result.Errors))
	}

	out := e.OutputLoader(in.Loader, cfg)
	file, ok := pickOutput(result.OutputFiles, out.OutputExtension(""))
	if !ok {
		return domain.Unit{}, zerr.With(domain.ErrEmptyOutput, "path", in.Path)
	}

	contents := file.Contents
	if contents == nil {
		contents = []byte{}
	}
	return domain.Unit{Path: in.Path, Contents: contents, Loader: out}, nil
}

func apiLoaders(in map[string]domain.Loader) map[string]api.Loader {
	out := make(map[string]api.Loader, len(in))
	for ext, l := range in {
		if al, ok := loaders[l]; ok {
			out[ext] = al
		}
	}
	return out
}

// pickOutput returns the output file with the wanted extension. esbuild emits
// a sibling stylesheet when a script imports CSS; that file is dropped.
func pickOutput(files []api.OutputFile, ext string) (api.OutputFile, bool) {
	for _, f := range files {
		if filepath.Ext(f.Path) == ext {
			return f, true
		}
	}
	if len(files) > 0 {
		return files[0], true
	}
	return api.OutputFile{}, false
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

func formatMessages(msgs []api.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = formatMessage(m)
	}
	return strings.Join(lines, "\n")
}

func writeMessages(w io.Writer, kind string, msgs []api.Message) {
	for _, m := range msgs {
		_, _ = fmt.Fprintf(w, "%s: %s\n", kind, formatMessage(m))
	}
}
