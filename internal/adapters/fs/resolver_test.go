package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/adapters/fs"
	"go.trai.ch/bundler/internal/core/domain"
)

func TestResolver_ResolveEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, root, "src/main.ts", "")
	mustWriteFile(t, root, "src/admin.ts", "")
	mustWriteFile(t, root, "src/images/logo.svg", "")
	mustWriteFile(t, root, "src/images/bg.svg", "")
	mustWriteFile(t, root, "src/images/icons/arrow.svg", "")
	mustWriteFile(t, root, "src/images/photo.png", "")

	resolver := fs.NewResolver(fs.NewWalker())

	t.Run("literals first then sorted matches", func(t *testing.T) {
		t.Parallel()
		resolved, err := resolver.ResolveEntries([]string{"src/images/*.svg", "src/main.ts", "./src/admin.ts"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "src", "main.ts"),
			filepath.Join(root, "src", "admin.ts"),
			filepath.Join(root, "src", "images", "bg.svg"),
			filepath.Join(root, "src", "images", "logo.svg"),
		}, resolved)
	})

	t.Run("double star crosses directories", func(t *testing.T) {
		t.Parallel()
		resolved, err := resolver.ResolveEntries([]string{"src/images/**.svg"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "src", "images", "bg.svg"),
			filepath.Join(root, "src", "images", "icons", "arrow.svg"),
			filepath.Join(root, "src", "images", "logo.svg"),
		}, resolved)
	})

	t.Run("alternatives and deduplication", func(t *testing.T) {
		t.Parallel()
		resolved, err := resolver.ResolveEntries([]string{"src/images/logo.svg", "src/images/*.{svg,png}"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "src", "images", "logo.svg"),
			filepath.Join(root, "src", "images", "bg.svg"),
			filepath.Join(root, "src", "images", "photo.png"),
		}, resolved)
	})

	t.Run("pattern without matches", func(t *testing.T) {
		t.Parallel()
		resolved, err := resolver.ResolveEntries([]string{"src/*.elm"}, root)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("missing literal", func(t *testing.T) {
		t.Parallel()
		_, err := resolver.ResolveEntries([]string{"src/missing.ts"}, root)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrEntryNotFound.Error())
	})

	t.Run("directory literal", func(t *testing.T) {
		t.Parallel()
		_, err := resolver.ResolveEntries([]string{"src/images"}, root)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrEntryNotFound.Error())
	})

	t.Run("outside root", func(t *testing.T) {
		t.Parallel()
		_, err := resolver.ResolveEntries([]string{"../outside.ts"}, root)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrPathOutsideRoot.Error())
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()
		_, err := resolver.ResolveEntries([]string{"src/[*.ts"}, root)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrInvalidPattern.Error())
	})
}

func TestResolver_Match(t *testing.T) {
	t.Parallel()

	resolver := fs.NewResolver(fs.NewWalker())
	patterns := []string{"src/main.ts", "src/images/*.svg"}

	tests := []struct {
		rel  string
		want bool
	}{
		{"src/main.ts", true},
		{"src/images/logo.svg", true},
		{"src/images/icons/arrow.svg", false},
		{"src/admin.ts", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			t.Parallel()
			got, err := resolver.Match(patterns, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolver.Match([]string{"[a"}, "a")
	assert.ErrorContains(t, err, domain.ErrInvalidPattern.Error())
}
