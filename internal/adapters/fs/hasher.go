package fs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// DefaultMemoSize is the number of file fingerprints the Hasher remembers.
const DefaultMemoSize = 4096

// Hasher fingerprints file contents with XXHash. Fingerprints are memoized by
// path and reused while the file's size and modification time are unchanged.
type Hasher struct {
	memo *lru.Cache[string, memoEntry]
}

type memoEntry struct {
	size        int64
	modTime     time.Time
	fingerprint string
}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	memo, err := lru.New[string, memoEntry](DefaultMemoSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Hasher{memo: memo}
}

// Hash returns the content fingerprint of the file at path.
func (h *Hasher) Hash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}

	if e, ok := h.memo.Get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.fingerprint, nil
	}

	sum, err := ComputeFileHash(path)
	if err != nil {
		return "", err
	}
	fp := formatFingerprint(sum)
	h.memo.Add(path, memoEntry{size: info.Size(), modTime: info.ModTime(), fingerprint: fp})
	return fp, nil
}

// Forget drops the memoized fingerprint for path.
func (h *Hasher) Forget(path string) {
	h.memo.Remove(path)
}

// ComputeFileHash computes the XXHash of a file's content.
func ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}
	return hasher.Sum64(), nil
}

// formatFingerprint renders a digest the way domain.ContentFingerprint does,
// so that a file's fingerprint equals the fingerprint of its bytes.
func formatFingerprint(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
