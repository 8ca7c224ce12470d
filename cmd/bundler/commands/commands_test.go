package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/cmd/bundler/commands"
	"go.trai.ch/bundler/internal/app"
	"go.trai.ch/bundler/internal/build"
)

type mockApp struct {
	buildFunc func(ctx context.Context, opts app.BuildOptions) error
	cleanFunc func(ctx context.Context, opts app.CleanOptions) error
	json      bool
	verbose   bool
}

func (m *mockApp) Build(ctx context.Context, opts app.BuildOptions) error {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Clean(ctx context.Context, opts app.CleanOptions) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) ConfigureLogging(json, verbose bool) {
	m.json = json
	m.verbose = verbose
}

func TestCommands_Build(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.BuildOptions
		called := false

		mock := &mockApp{
			buildFunc: func(_ context.Context, opts app.BuildOptions) error {
				captured = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build", "--watch", "--deploy", "-j", "3", "--json", "--verbose"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, app.BuildOptions{Watch: true, Deploy: true, Concurrency: 3}, captured)
		assert.True(t, mock.json)
		assert.True(t, mock.verbose)
	})

	t.Run("defaults to a one-shot development build", func(t *testing.T) {
		var captured app.BuildOptions
		mock := &mockApp{
			buildFunc: func(_ context.Context, opts app.BuildOptions) error {
				captured = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, app.BuildOptions{}, captured)
		assert.False(t, mock.json)
		assert.False(t, mock.verbose)
	})

	t.Run("returns error on build failure", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ app.BuildOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ app.BuildOptions) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build", "main.ts"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		require.Error(t, cli.Execute(context.Background()))
	})
}

func TestCommands_Clean(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want app.CleanOptions
	}{
		{name: "cache only", args: []string{"clean"}, want: app.CleanOptions{}},
		{name: "all", args: []string{"clean", "--all"}, want: app.CleanOptions{All: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var captured app.CleanOptions
			called := false
			mock := &mockApp{
				cleanFunc: func(_ context.Context, opts app.CleanOptions) error {
					captured = opts
					called = true
					return nil
				},
			}

			cli := commands.New(mock)
			cli.SetArgs(tc.args)

			require.NoError(t, cli.Execute(context.Background()))
			assert.True(t, called)
			assert.Equal(t, tc.want, captured)
		})
	}
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{}
	cli := commands.New(mock)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "bundler version "+build.Version)
}

func TestCommands_VersionFlag(t *testing.T) {
	for _, arg := range []string{"--version", "-v"} {
		t.Run(arg, func(t *testing.T) {
			mock := &mockApp{}
			cli := commands.New(mock)

			buf := new(bytes.Buffer)
			cli.SetOutput(buf, buf)
			cli.SetArgs([]string{arg})

			err := cli.Execute(context.Background())
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "bundler version "+build.Version)
			assert.False(t, mock.verbose)
		})
	}
}

func TestCommands_VerboseOnSubcommands(t *testing.T) {
	for _, args := range [][]string{
		{"build", "--verbose"},
		{"clean", "--verbose"},
		{"version", "--verbose"},
	} {
		t.Run(args[0], func(t *testing.T) {
			mock := &mockApp{
				buildFunc: func(context.Context, app.BuildOptions) error { return nil },
				cleanFunc: func(context.Context, app.CleanOptions) error { return nil },
			}
			cli := commands.New(mock)
			cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
			cli.SetArgs(args)

			require.NotPanics(t, func() {
				require.NoError(t, cli.Execute(context.Background()))
			})
			assert.True(t, mock.verbose)
		})
	}
}
