package linear_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/adapters/linear"
	"go.trai.ch/zerr"
)

func newPlainRenderer(t *testing.T) (*linear.Renderer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	return linear.NewRenderer(&stdout, &stderr), &stdout, &stderr
}

func TestRenderer_TargetLifecycle(t *testing.T) {
	r, stdout, stderr := newPlainRenderer(t)
	require.NoError(t, r.Start(context.Background()))

	r.OnPlanEmit([]string{"vendor.js", "main.js"}, map[string][]string{"main.js": {"vendor.js"}})

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "main.js", start)
	r.OnTargetLog("span1", []byte("first line\n"))
	r.OnTargetLog("span1", []byte("second line\n"))
	r.OnTargetComplete("span1", start.Add(100*time.Millisecond), false, nil)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())

	assert.Equal(t, "[main.js] first line\n[main.js] second line\n", stdout.String())
	assert.Equal(t,
		"Planning to build 2 target(s): vendor.js, main.js\n"+
			"[main.js] Building...\n"+
			"[main.js] ✓ Built in 100ms\n",
		stderr.String())
}

func TestRenderer_EmptyPlan(t *testing.T) {
	r, _, stderr := newPlainRenderer(t)

	r.OnPlanEmit(nil, nil)

	assert.Equal(t, "Nothing to build\n", stderr.String())
}

func TestRenderer_CachedTarget(t *testing.T) {
	r, _, stderr := newPlainRenderer(t)

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "main.js", start)
	r.OnTargetComplete("span1", start.Add(time.Millisecond), true, nil)

	assert.Contains(t, stderr.String(), "[main.js] ≡ Cached\n")
}

func TestRenderer_PartialLines(t *testing.T) {
	r, stdout, _ := newPlainRenderer(t)

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "main.js", start)

	r.OnTargetLog("span1", []byte("partial"))
	assert.Empty(t, stdout.String())

	r.OnTargetLog("span1", []byte(" line\r\nunflushed"))
	assert.Equal(t, "[main.js] partial line\n", stdout.String())

	r.OnTargetComplete("span1", start.Add(50*time.Millisecond), false, nil)
	assert.Equal(t, "[main.js] partial line\n[main.js] unflushed\n", stdout.String())
}

func TestRenderer_StopFlushesPartialLines(t *testing.T) {
	r, stdout, _ := newPlainRenderer(t)

	r.OnTargetStart("span1", "", "main.js", time.Unix(0, 0))
	r.OnTargetLog("span1", []byte("no newline"))
	require.NoError(t, r.Stop())

	assert.Equal(t, "[main.js] no newline\n", stdout.String())
}

func TestRenderer_TargetError(t *testing.T) {
	r, _, stderr := newPlainRenderer(t)

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "main.js", start)
	r.OnTargetComplete("span1", start.Add(50*time.Millisecond), false, zerr.New("unexpected token"))

	assert.Contains(t, stderr.String(), "[main.js] ✗ Failed after 50ms: unexpected token\n")
}

func TestRenderer_UnknownSpanIsIgnored(t *testing.T) {
	r, stdout, stderr := newPlainRenderer(t)

	r.OnTargetLog("missing", []byte("line\n"))
	r.OnTargetComplete("missing", time.Now(), false, nil)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_ConcurrentTargets(t *testing.T) {
	r, stdout, _ := newPlainRenderer(t)

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "a.js", start)
	r.OnTargetStart("span2", "", "b.js", start)

	r.OnTargetLog("span1", []byte("a line 1\n"))
	r.OnTargetLog("span2", []byte("b line 1\n"))
	r.OnTargetLog("span1", []byte("a line 2\n"))
	r.OnTargetLog("span2", []byte("b line 2\n"))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"[a.js] a line 1",
		"[b.js] b line 1",
		"[a.js] a line 2",
		"[b.js] b line 2",
	}, lines)
}

func TestRenderer_NoColor(t *testing.T) {
	r, _, stderr := newPlainRenderer(t)

	start := time.Unix(0, 0)
	r.OnTargetStart("span1", "", "main.js", start)
	r.OnTargetComplete("span1", start.Add(50*time.Millisecond), false, nil)

	assert.NotContains(t, stderr.String(), "\x1b[")
}
