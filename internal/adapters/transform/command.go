package transform

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

// Placeholders substituted in the argv of command transforms.
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

// Command runs a declared external command as a transform.
//
// The command reads {input} and writes {output}. When the unit was produced by
// an earlier transform, {input} is a temporary copy of its contents.
type Command struct {
	spec     domain.CommandSpec
	executor ports.Executor
}

// NewCommand creates a transform for the command spec.
func NewCommand(spec domain.CommandSpec, executor ports.Executor) *Command {
	return &Command{spec: spec, executor: executor}
}

// Name implements ports.Transform.
func (c *Command) Name() string { return c.spec.Name }

// OutputLoader returns the loader declared for the command's output.
func (c *Command) OutputLoader(_ domain.Loader, _ *domain.Config) domain.Loader {
	return c.spec.Loader
}

// Apply runs the command in the project root.
func (c *Command) Apply(ctx context.Context, in domain.Unit, cfg *domain.Config) (domain.Unit, error) {
	tmp, err := os.MkdirTemp("", "bundler-"+c.spec.Name+"-")
	if err != nil {
		return domain.Unit{}, zerr.Wrap(err, "failed to create temporary directory")
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	input := in.Path
	if in.Contents != nil {
		input = filepath.Join(tmp, "input"+filepath.Ext(in.Path))
		if err := os.WriteFile(input, in.Contents, domain.FilePerm); err != nil {
			return domain.Unit{}, zerr.Wrap(err, "failed to write command input")
		}
	}
	output := filepath.Join(tmp, "output"+c.spec.Loader.OutputExtension(filepath.Ext(in.Path)))

	args := make([]string, len(c.spec.Run))
	for i, a := range c.spec.Run {
		a = strings.ReplaceAll(a, InputPlaceholder, input)
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}

	w := ports.OutputFromContext(ctx)
	cmd := &domain.Command{
		Name: c.spec.Name,
		Dir:  cfg.Root(),
		Args: args,
		Env:  commandEnv(c.spec, cfg, input, output),
	}
	if err := c.executor.Execute(ctx, cmd, w, w); err != nil {
		return domain.Unit{}, err
	}

	data, err := os.ReadFile(output)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Unit{}, zerr.With(domain.ErrEmptyOutput, "command", c.spec.Name)
	}
	if err != nil {
		return domain.Unit{}, zerr.With(zerr.Wrap(err, "failed to read command output"), "command", c.spec.Name)
	}

	return domain.Unit{Path: in.Path, Contents: data, Loader: c.spec.Loader}, nil
}

// commandEnv exports the build mode to the command. Variables declared on the
// command come last and win.
func commandEnv(spec domain.CommandSpec, cfg *domain.Config, input, output string) []string {
	env := []string{
		"BUNDLER_MODE=" + string(cfg.Mode()),
		"BUNDLER_DEV_MODE=" + strconv.FormatBool(cfg.DevMode()),
		"BUNDLER_DEBUG=" + strconv.FormatBool(cfg.Debug()),
		"BUNDLER_OPTIMIZE=" + strconv.FormatBool(cfg.Minify()),
		"BUNDLER_INPUT=" + input,
		"BUNDLER_OUTPUT=" + output,
	}
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		env = append(env, k+"="+spec.Env[k])
	}
	return env
}
