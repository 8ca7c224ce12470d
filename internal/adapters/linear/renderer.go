// Package linear provides a synchronous, line-buffered progress renderer.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/bundler/internal/ui/output"
	"go.trai.ch/bundler/internal/ui/style"
)

// Renderer implements ports.Renderer with chronological, target-prefixed lines.
// Transform output goes to stdout, progress goes to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer

	prefix  lipgloss.Style
	success lipgloss.Style
	cached  lipgloss.Style
	failure lipgloss.Style

	mu      sync.Mutex
	targets map[string]*targetState // spanID -> target state
}

type targetState struct {
	name      string
	startTime time.Time
	buf       bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	lr := lipgloss.NewRenderer(stderr)
	lr.SetColorProfile(output.ANSI())

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		prefix:  style.Muted.Renderer(lr),
		success: style.Success.Renderer(lr),
		cached:  style.Muted.Renderer(lr),
		failure: style.Failure.Renderer(lr),
		targets: make(map[string]*targetState),
	}
}

// Start is a no-op; the renderer writes synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all partial lines.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.targets {
		r.flushLocked(t)
	}
	return nil
}

// Wait is a no-op; the renderer writes synchronously.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned targets in build order.
func (r *Renderer) OnPlanEmit(targets []string, _ map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(targets) == 0 {
		_, _ = fmt.Fprintln(r.stderr, "Nothing to build")
		return
	}
	_, _ = fmt.Fprintf(r.stderr, "Planning to build %d target(s): %s\n",
		len(targets), strings.Join(targets, ", "))
}

// OnTargetStart prints a start line.
func (r *Renderer) OnTargetStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[spanID] = &targetState{name: name, startTime: startTime}
	_, _ = fmt.Fprintf(r.stderr, "%s Building...\n", r.prefix.Render("["+name+"]"))
}

// OnTargetLog buffers output and prints complete lines with the target prefix.
func (r *Renderer) OnTargetLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[spanID]
	if !ok {
		return
	}

	t.buf.Write(data)
	for {
		idx := bytes.IndexByte(t.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := t.buf.Next(idx + 1)
		r.printLineLocked(t.name, line)
	}
}

// OnTargetComplete flushes remaining output and prints the outcome.
func (r *Renderer) OnTargetComplete(spanID string, endTime time.Time, cached bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[spanID]
	if !ok {
		return
	}
	r.flushLocked(t)
	delete(r.targets, spanID)

	prefix := r.prefix.Render("[" + t.name + "]")
	duration := endTime.Sub(t.startTime)

	switch {
	case err != nil:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n",
			prefix, r.failure.Render(style.Cross), duration, err)
	case cached:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Cached\n", prefix, r.cached.Render(style.Cached))
	default:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Built in %v\n",
			prefix, r.success.Render(style.Check), duration)
	}
}

// flushLocked prints a pending partial line. Must be called with r.mu held.
func (r *Renderer) flushLocked(t *targetState) {
	if t.buf.Len() == 0 {
		return
	}
	r.printLineLocked(t.name, t.buf.Bytes())
	t.buf.Reset()
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}
