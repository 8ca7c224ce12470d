package shell_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/adapters/shell"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func TestExecutor_Execute_StreamsOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug("[echo] line1")
	mockLogger.EXPECT().Debug("[echo] line2")

	executor := shell.NewExecutor(mockLogger)

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), &domain.Command{
		Name: "echo",
		Dir:  t.TempDir(),
		Args: []string{"sh", "-c", "echo line1; echo line2"},
	}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", stdout.String())
}

func TestExecutor_Execute_FragmentedOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug("[sh] part1part2")

	executor := shell.NewExecutor(mockLogger)

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), &domain.Command{
		Args: []string{"sh", "-c", "printf part1; sleep 0.1; printf part2"},
	}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "part1part2", stdout.String())
}

func TestExecutor_Execute_Stderr(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug("[warn] careful")

	executor := shell.NewExecutor(mockLogger)

	var stdout, stderr bytes.Buffer
	err := executor.Execute(context.Background(), &domain.Command{
		Name: "warn",
		Args: []string{"sh", "-c", "echo careful >&2"},
	}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	assert.Equal(t, "careful\n", stderr.String())
}

func TestExecutor_Execute_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BUNDLER_TEST_INHERITED", "from-parent")
	t.Setenv("BUNDLER_TEST_OVERRIDE", "old")

	executor := shell.NewExecutor(nil)

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), &domain.Command{
		Args: []string{"sh", "-c", "echo $BUNDLER_TEST_INHERITED $BUNDLER_TEST_OVERRIDE"},
		Env:  []string{"BUNDLER_TEST_OVERRIDE=new"},
	}, &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-parent new\n", stdout.String())
}

func TestExecutor_Execute_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	executor := shell.NewExecutor(nil)

	err := executor.Execute(context.Background(), &domain.Command{
		Dir:  dir,
		Args: []string{"sh", "-c", "echo hi > out.txt"},
	}, nil, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(got))
}

func TestExecutor_Execute_PathFromOverrides(t *testing.T) {
	bin := t.TempDir()
	script := filepath.Join(bin, "greet")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho greetings\n"), 0o755))

	executor := shell.NewExecutor(nil)

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), &domain.Command{
		Args: []string{"greet"},
		Env:  []string{"PATH=" + bin + string(os.PathListSeparator) + os.Getenv("PATH")},
	}, &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, "greetings\n", stdout.String())
}

func TestExecutor_Execute_ExitCode(t *testing.T) {
	executor := shell.NewExecutor(nil)

	err := executor.Execute(context.Background(), &domain.Command{
		Name: "fail",
		Args: []string{"sh", "-c", "exit 3"},
	}, nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrCommandFailed.Error())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	meta := zErr.Metadata()
	assert.Equal(t, 3, meta["exit_code"])
	assert.Equal(t, "fail", meta["command"])
}

func TestExecutor_Execute_NotFound(t *testing.T) {
	executor := shell.NewExecutor(nil)

	err := executor.Execute(context.Background(), &domain.Command{
		Args: []string{"bundler-command-that-does-not-exist"},
	}, nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrCommandFailed.Error())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, -1, zErr.Metadata()["exit_code"])
}

func TestExecutor_Execute_Empty(t *testing.T) {
	executor := shell.NewExecutor(nil)

	err := executor.Execute(context.Background(), &domain.Command{Name: "nothing"}, nil, nil)
	require.ErrorIs(t, err, domain.ErrCommandFailed)

	err = executor.Execute(context.Background(), nil, nil, nil)
	require.ErrorIs(t, err, domain.ErrCommandFailed)
}

func TestExecutor_Execute_Canceled(t *testing.T) {
	executor := shell.NewExecutor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.Execute(ctx, &domain.Command{
		Args: []string{"sh", "-c", "sleep 5"},
	}, nil, nil)
	require.Error(t, err)
}
