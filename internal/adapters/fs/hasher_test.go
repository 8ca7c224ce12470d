package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/adapters/fs"
	"go.trai.ch/bundler/internal/core/domain"
)

// expectedHash is the hardcoded golden fingerprint of "start-content".
// If this changes, every cached artifact of every user is invalidated.
// Validate the change carefully before updating this constant.
const expectedHash = "92ee87ac4e0a0b35"

func TestHasher_Hash_Golden(t *testing.T) {
	path := mustWriteFile(t, t.TempDir(), "dummy.txt", "start-content")

	hash, err := fs.NewHasher().Hash(path)
	require.NoError(t, err)
	require.Equal(t, expectedHash, hash, "Hasher algorithm changed! Verify if this is intentional.")
}

func TestHasher_Hash_MatchesContentFingerprint(t *testing.T) {
	content := "export const a = 1;"
	path := mustWriteFile(t, t.TempDir(), "a.ts", content)

	hash, err := fs.NewHasher().Hash(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentFingerprint([]byte(content)), hash)
}

func TestHasher_Hash_MemoizesBySizeAndModTime(t *testing.T) {
	path := mustWriteFile(t, t.TempDir(), "a.ts", "changed")
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	h := fs.NewHasher()
	first, err := h.Hash(path)
	require.NoError(t, err)

	// Same size and modification time: the memoized fingerprint is reused.
	require.NoError(t, os.WriteFile(path, []byte("changes"), domain.FilePerm))
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	memoized, err := h.Hash(path)
	require.NoError(t, err)
	assert.Equal(t, first, memoized)

	h.Forget(path)
	fresh, err := h.Hash(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentFingerprint([]byte("changes")), fresh)
	assert.NotEqual(t, first, fresh)
}

func TestHasher_Hash_DetectsModification(t *testing.T) {
	path := mustWriteFile(t, t.TempDir(), "a.ts", "one")
	h := fs.NewHasher()

	first, err := h.Hash(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("three"), domain.FilePerm))
	second, err := h.Hash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHasher_Hash_MissingFile(t *testing.T) {
	_, err := fs.NewHasher().Hash(filepath.Join(t.TempDir(), "missing.ts"))
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrPathStatFailed.Error())
}
