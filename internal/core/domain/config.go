package domain

import (
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Mode is the build mode injected into the bundled application.
type Mode string

const (
	// ModeDevelopment is used for every build without --deploy.
	ModeDevelopment Mode = "development"
	// ModeProduction is used for --deploy builds.
	ModeProduction Mode = "production"
)

// SourcemapMode controls sourcemap emission.
type SourcemapMode string

const (
	// SourcemapNone emits no sourcemap.
	SourcemapNone SourcemapMode = "none"
	// SourcemapInline appends the sourcemap to the artifact as a data URL.
	SourcemapInline SourcemapMode = "inline"
)

// Loader names how the contents of a file are interpreted.
type Loader string

// Supported loaders.
const (
	LoaderJS   Loader = "js"
	LoaderJSX  Loader = "jsx"
	LoaderTS   Loader = "ts"
	LoaderTSX  Loader = "tsx"
	LoaderCSS  Loader = "css"
	LoaderJSON Loader = "json"
	LoaderText Loader = "text"
	LoaderFile Loader = "file"
)

// ParseLoader validates a loader name.
func ParseLoader(s string) (Loader, error) {
	l := Loader(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LoaderJS, LoaderJSX, LoaderTS, LoaderTSX, LoaderCSS, LoaderJSON, LoaderText, LoaderFile:
		return l, nil
	default:
		return "", zerr.With(ErrUnknownLoader, "loader", s)
	}
}

// OutputExtension returns the file extension of an artifact produced from
// content of this loader. File loaders keep the source extension.
func (l Loader) OutputExtension(sourceExt string) string {
	switch l {
	case LoaderCSS:
		return ".css"
	case LoaderText:
		return ".txt"
	case LoaderJSON:
		return ".json"
	case LoaderFile:
		return sourceExt
	default:
		return ".js"
	}
}

// BundleSpec declares a named target assembled from several entry modules.
type BundleSpec struct {
	Name      string
	Entries   []string
	DependsOn []string
}

// PipelineSpec maps a file name pattern to an ordered list of transform names.
type PipelineSpec struct {
	Pattern    string
	Transforms []string
}

// CommandSpec declares an external command usable as a transform.
type CommandSpec struct {
	Name string
	// Run is the argv; {input} and {output} are substituted per invocation.
	Run []string
	// Loader is the loader of the file the command writes to {output}.
	Loader Loader
	// Env holds extra environment variables for the command.
	Env map[string]string
}

// Project is the parsed project file, before command line flags are applied.
type Project struct {
	Root        string
	OutDir      string
	ServeDir    string
	Target      string
	EntryPoints []string
	Bundles     []BundleSpec
	External    []string
	Loaders     map[string]Loader
	Pipelines   []PipelineSpec
	Commands    []CommandSpec
	Define      map[string]string
	Concurrency int
}

// Flags are the command line switches that select a configuration variant.
type Flags struct {
	Watch       bool
	Deploy      bool
	Concurrency int
}

// Config is the immutable configuration of one bundler invocation. It is built
// once by NewConfig and shared by pointer; every accessor returns copies.
type Config struct {
	root        string
	outDir      string
	serveDir    string
	target      string
	entryPoints []string
	bundles     []BundleSpec
	external    []string
	loaders     map[string]Loader
	pipelines   []PipelineSpec
	commands    map[string]CommandSpec
	define      map[string]string
	concurrency int

	watch     bool
	deploy    bool
	mode      Mode
	minify    bool
	sourcemap SourcemapMode
	digest    string
}

// Default values applied by NewConfig.
const (
	DefaultOutDir   = "public/dist"
	DefaultServeDir = "public"
	DefaultTarget   = "es2017"
)

// DefaultLoaders maps extensions to loaders when the project does not override them.
func DefaultLoaders() map[string]Loader {
	return map[string]Loader{
		".js":    LoaderJS,
		".mjs":   LoaderJS,
		".cjs":   LoaderJS,
		".jsx":   LoaderJSX,
		".ts":    LoaderTS,
		".mts":   LoaderTS,
		".tsx":   LoaderTSX,
		".css":   LoaderCSS,
		".json":  LoaderJSON,
		".txt":   LoaderText,
		".svg":   LoaderFile,
		".png":   LoaderFile,
		".jpg":   LoaderFile,
		".jpeg":  LoaderFile,
		".gif":   LoaderFile,
		".webp":  LoaderFile,
		".ico":   LoaderFile,
		".woff":  LoaderFile,
		".woff2": LoaderFile,
	}
}

// NewConfig combines a project with command line flags.
//
// Deploy selects production mode: minified output and a false devMode flag.
// Watch without deploy adds inline sourcemaps; watch with deploy suppresses them.
func NewConfig(p *Project, f Flags) (*Config, error) {
	if p.Root == "" || !filepath.IsAbs(p.Root) {
		return nil, zerr.With(ErrInvalidConfig, "root", p.Root)
	}
	if len(p.EntryPoints) == 0 && len(p.Bundles) == 0 {
		return nil, ErrNoEntryPoints
	}

	c := &Config{
		root:        filepath.Clean(p.Root),
		outDir:      orDefault(p.OutDir, DefaultOutDir),
		serveDir:    orDefault(p.ServeDir, DefaultServeDir),
		target:      orDefault(p.Target, DefaultTarget),
		entryPoints: slices.Clone(p.EntryPoints),
		bundles:     cloneBundles(p.Bundles),
		external:    slices.Clone(p.External),
		loaders:     DefaultLoaders(),
		pipelines:   clonePipelines(p.Pipelines),
		commands:    make(map[string]CommandSpec, len(p.Commands)),
		define:      maps.Clone(p.Define),
		watch:       f.Watch,
		deploy:      f.Deploy,
	}
	maps.Copy(c.loaders, p.Loaders)

	for _, dir := range []string{c.outDir, c.serveDir} {
		if _, err := ModuleKey(c.root, dir); err != nil {
			return nil, zerr.With(zerr.Wrap(err, ErrInvalidConfig.Error()), "dir", dir)
		}
	}

	for _, cmd := range p.Commands {
		if cmd.Name == "" || len(cmd.Run) == 0 {
			return nil, zerr.With(ErrInvalidConfig, "command", cmd.Name)
		}
		if _, dup := c.commands[cmd.Name]; dup {
			return nil, zerr.With(zerr.With(ErrInvalidConfig, "command", cmd.Name), "reason", "duplicate command")
		}
		cmd.Run = slices.Clone(cmd.Run)
		cmd.Env = maps.Clone(cmd.Env)
		if cmd.Loader == "" {
			cmd.Loader = LoaderJS
		}
		c.commands[cmd.Name] = cmd
	}

	switch {
	case f.Concurrency > 0:
		c.concurrency = f.Concurrency
	case p.Concurrency > 0:
		c.concurrency = p.Concurrency
	default:
		c.concurrency = runtime.NumCPU()
	}

	c.mode = ModeDevelopment
	c.sourcemap = SourcemapNone
	if f.Deploy {
		c.mode = ModeProduction
		c.minify = true
	} else if f.Watch {
		c.sourcemap = SourcemapInline
	}

	c.digest = c.computeDigest()
	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func cloneBundles(in []BundleSpec) []BundleSpec {
	out := make([]BundleSpec, len(in))
	for i, b := range in {
		out[i] = BundleSpec{
			Name:      b.Name,
			Entries:   slices.Clone(b.Entries),
			DependsOn: slices.Clone(b.DependsOn),
		}
	}
	return out
}

func clonePipelines(in []PipelineSpec) []PipelineSpec {
	out := make([]PipelineSpec, len(in))
	for i, p := range in {
		out[i] = PipelineSpec{Pattern: p.Pattern, Transforms: slices.Clone(p.Transforms)}
	}
	return out
}

// Root returns the absolute project root.
func (c *Config) Root() string { return c.root }

// OutDir returns the output directory relative to the root.
func (c *Config) OutDir() string { return c.outDir }

// OutDirPath returns the absolute output directory.
func (c *Config) OutDirPath() string { return filepath.Join(c.root, c.outDir) }

// ServeDir returns the directory served to browsers, relative to the root.
func (c *Config) ServeDir() string { return c.serveDir }

// ServeDirPath returns the absolute serve directory.
func (c *Config) ServeDirPath() string { return filepath.Join(c.root, c.serveDir) }

// Target returns the JavaScript language target, e.g. es2017.
func (c *Config) Target() string { return c.target }

// EntryPoints returns the configured entry paths and patterns in declaration order.
func (c *Config) EntryPoints() []string { return slices.Clone(c.entryPoints) }

// Bundles returns the named multi-entry targets in declaration order.
func (c *Config) Bundles() []BundleSpec { return cloneBundles(c.bundles) }

// External returns the import patterns left out of bundles.
func (c *Config) External() []string { return slices.Clone(c.external) }

// Loaders returns the extension to loader table.
func (c *Config) Loaders() map[string]Loader { return maps.Clone(c.loaders) }

// LoaderFor returns the loader configured for a file name.
func (c *Config) LoaderFor(path string) (Loader, bool) {
	l, ok := c.loaders[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Pipelines returns the user declared pipelines in declaration order.
func (c *Config) Pipelines() []PipelineSpec { return clonePipelines(c.pipelines) }

// Command returns the named command transform.
func (c *Config) Command(name string) (CommandSpec, bool) {
	cmd, ok := c.commands[name]
	if !ok {
		return CommandSpec{}, false
	}
	cmd.Run = slices.Clone(cmd.Run)
	cmd.Env = maps.Clone(cmd.Env)
	return cmd, true
}

// CommandNames returns the names of all declared command transforms, sorted.
func (c *Config) CommandNames() []string {
	return slices.Sorted(maps.Keys(c.commands))
}

// Concurrency returns the maximum number of targets built in parallel.
func (c *Config) Concurrency() int { return c.concurrency }

// Watch reports whether the invocation keeps watching for changes.
func (c *Config) Watch() bool { return c.watch }

// Deploy reports whether the invocation builds for production.
func (c *Config) Deploy() bool { return c.deploy }

// Mode returns the build mode.
func (c *Config) Mode() Mode { return c.mode }

// DevMode is the flag the bootstrapped application receives at initialization.
func (c *Config) DevMode() bool { return c.mode == ModeDevelopment }

// Debug reports whether debug instrumentation is requested from external
// compilers. It is only set for development watch builds.
func (c *Config) Debug() bool { return c.watch && !c.deploy }

// Minify reports whether output is minified.
func (c *Config) Minify() bool { return c.minify }

// Sourcemap returns the sourcemap mode.
func (c *Config) Sourcemap() SourcemapMode { return c.sourcemap }

// Defines returns the identifier replacements injected into bundles.
// The mode defines always win over user defines of the same name.
func (c *Config) Defines() map[string]string {
	out := maps.Clone(c.define)
	if out == nil {
		out = make(map[string]string, 4)
	}
	out["process.env.MODE"] = strconv.Quote(string(c.mode))
	out["import.meta.env.MODE"] = strconv.Quote(string(c.mode))
	out["import.meta.env.DEV"] = strconv.FormatBool(c.DevMode())
	out["import.meta.env.PROD"] = strconv.FormatBool(!c.DevMode())
	return out
}

// Digest fingerprints every setting that influences artifact bytes.
// It salts target fingerprints so that switching modes never reuses artifacts.
func (c *Config) Digest() string { return c.digest }

func (c *Config) computeDigest() string {
	w := newDigestWriter()
	w.field(string(c.mode), strconv.FormatBool(c.minify), string(c.sourcemap), strconv.FormatBool(c.Debug()), c.target)
	w.section()

	for _, e := range c.external {
		w.field(e)
	}
	w.section()

	for _, ext := range slices.Sorted(maps.Keys(c.loaders)) {
		w.field(ext, string(c.loaders[ext]))
	}
	w.section()

	defines := c.Defines()
	for _, k := range slices.Sorted(maps.Keys(defines)) {
		w.field(k, defines[k])
	}
	w.section()

	for _, p := range c.pipelines {
		w.field(p.Pattern)
		w.field(p.Transforms...)
		w.section()
	}
	w.section()

	for _, name := range c.CommandNames() {
		cmd := c.commands[name]
		w.field(name, string(cmd.Loader))
		w.field(cmd.Run...)
		for _, k := range slices.Sorted(maps.Keys(cmd.Env)) {
			w.field(k, cmd.Env[k])
		}
		w.section()
	}

	return w.sum()
}
