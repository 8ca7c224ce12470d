// Package shell provides the external command executor.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor. Every output line is also logged at
// debug level.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// Execute runs the command to completion.
// The environment is the inherited process environment with cmd.Env layered on top.
func (e *Executor) Execute(ctx context.Context, cmd *domain.Command, stdout, stderr io.Writer) error {
	if cmd == nil || len(cmd.Args) == 0 {
		return zerr.With(zerr.Wrap(domain.ErrCommandFailed, "empty command"), "command", commandName(cmd))
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	name := cmd.Args[0]
	env := resolveEnvironment(os.Environ(), cmd.Env)

	executable := name
	if !filepath.IsAbs(name) && !strings.ContainsRune(name, filepath.Separator) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args[1:]...) //nolint:gosec // user provided command
	if len(c.Args) > 0 {
		c.Args[0] = name
	}
	c.Dir = cmd.Dir
	c.Env = env

	stdoutLog := &logWriter{logger: e.logger, prefix: commandName(cmd)}
	stderrLog := &logWriter{logger: e.logger, prefix: commandName(cmd)}
	c.Stdout = io.MultiWriter(stdout, stdoutLog)
	c.Stderr = io.MultiWriter(stderr, stderrLog)

	err := c.Run()
	stdoutLog.Close()
	stderrLog.Close()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()),
			"command", commandName(cmd)),
			"exit_code", exitCode)
	}

	return nil
}

func commandName(cmd *domain.Command) string {
	switch {
	case cmd == nil:
		return ""
	case cmd.Name != "":
		return cmd.Name
	case len(cmd.Args) > 0:
		return cmd.Args[0]
	default:
		return ""
	}
}

// logWriter forwards complete lines to the debug log.
type logWriter struct {
	logger ports.Logger
	prefix string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close logs a trailing partial line.
func (w *logWriter) Close() {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	w.logger.Debug("[" + w.prefix + "] " + msg)
}

// resolveEnvironment layers overrides over the system environment.
// Later entries win. The result is sorted by key.
func resolveEnvironment(sysEnv, overrides []string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(overrides))
	for _, list := range [][]string{sysEnv, overrides} {
		for _, entry := range list {
			if k, v, ok := strings.Cut(entry, "="); ok && k != "" {
				envMap[k] = v
			}
		}
	}

	result := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH
// entry of env rather than of the current process.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
