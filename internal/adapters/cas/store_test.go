package cas_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/adapters/cas"
	"go.trai.ch/bundler/internal/core/domain"
)

func newEntry(target, fingerprint, contents string) domain.CacheEntry {
	return domain.CacheEntry{
		TargetID:    target,
		Fingerprint: fingerprint,
		Artifact:    *domain.NewArtifact(target, target, []byte(contents)),
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cacheFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(filepath.Join(root, domain.DefaultCachePath()), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	entry := newEntry("main.js", "aaaa", "console.log(1)")

	require.NoError(t, store.Put(root, entry))

	got, err := store.Get(root, "main.js", "aaaa")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Artifact, *got)
}

func TestStore_GetMiss(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, newEntry("main.js", "aaaa", "x")))

	tests := []struct {
		name        string
		target      string
		fingerprint string
	}{
		{"unknown target", "app.css", "aaaa"},
		{"other fingerprint", "main.js", "bbbb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := store.Get(root, tt.target, tt.fingerprint)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_PutEvictsOtherFingerprints(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, newEntry("main.js", "aaaa", "v1")))
	require.NoError(t, store.Put(root, newEntry("app.css", "cccc", "body{}")))
	require.NoError(t, store.Put(root, newEntry("main.js", "bbbb", "v2")))

	got, err := store.Get(root, "main.js", "aaaa")
	require.NoError(t, err)
	assert.Nil(t, got, "previous fingerprint must be evicted")

	got, err = store.Get(root, "main.js", "bbbb")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", string(got.Contents))

	got, err = store.Get(root, "app.css", "cccc")
	require.NoError(t, err)
	assert.NotNil(t, got, "other targets are untouched")

	assert.Len(t, cacheFiles(t, root), 2)
}

func TestStore_GetCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		corrupt func(t *testing.T, path string)
	}{
		{"invalid json", func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte("{invalid"), domain.FilePerm))
		}},
		{"tampered contents", func(t *testing.T, path string) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var entry domain.CacheEntry
			require.NoError(t, json.Unmarshal(data, &entry))
			entry.Artifact.Contents = []byte("v2")
			data, err = json.Marshal(entry)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, data, domain.FilePerm))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			store := cas.NewStore()
			require.NoError(t, store.Put(root, newEntry("main.js", "aaaa", "v1")))

			files := cacheFiles(t, root)
			require.Len(t, files, 1)
			tt.corrupt(t, files[0])

			got, err := store.Get(root, "main.js", "aaaa")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCacheCorruption)
			assert.Nil(t, got)
		})
	}
}

func TestStore_GetKeyMismatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, newEntry("main.js", "aaaa", "v1")))

	files := cacheFiles(t, root)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var entry domain.CacheEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	entry.TargetID = "other.js"
	data, err = json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(files[0], data, domain.FilePerm))

	_, err = store.Get(root, "main.js", "aaaa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCacheCorruption)
}

func TestStore_RejectsNonHexFingerprint(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()

	_, err := store.Get(root, "main.js", "../../etc")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrCacheReadFailed.Error())

	err = store.Put(root, newEntry("main.js", "", "x"))
	require.Error(t, err)
}

func TestStore_InvalidateAndClear(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, newEntry("main.js", "aaaa", "x")))
	require.NoError(t, store.Put(root, newEntry("app.css", "bbbb", "y")))

	require.NoError(t, store.Invalidate(root, "main.js"))
	got, err := store.Get(root, "main.js", "aaaa")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get(root, "app.css", "bbbb")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, store.Clear(root))
	_, err = os.Stat(filepath.Join(root, domain.DefaultCachePath()))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Invalidate(root, "missing.js"))
	require.NoError(t, store.Clear(root))
}
