// Package cas implements the on-disk output cache.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactCache = (*Store)(nil)

// Store implements ports.ArtifactCache with one directory per target and one
// JSON file per fingerprint:
//
//	.bundler/cache/<sha256(target)>/<fingerprint>.json
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the artifact cached for (targetID, fingerprint), or nil on a miss.
// Entries that cannot be decoded or that fail their integrity check are
// reported as domain.ErrCacheCorruption.
func (s *Store) Get(root, targetID, fingerprint string) (*domain.Artifact, error) {
	filename, err := s.entryFilename(root, targetID, fingerprint)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "target", targetID)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, corruption(targetID, err.Error())
	}
	if entry.TargetID != targetID || entry.Fingerprint != fingerprint {
		return nil, corruption(targetID, "entry key mismatch")
	}
	if domain.ContentFingerprint(entry.Artifact.Contents) != entry.Artifact.Fingerprint {
		return nil, corruption(targetID, "artifact fingerprint mismatch")
	}

	artifact := entry.Artifact
	return &artifact, nil
}

// Put stores the entry and evicts the target's entries under other fingerprints.
func (s *Store) Put(root string, entry domain.CacheEntry) error {
	filename, err := s.entryFilename(root, entry.TargetID, entry.Fingerprint)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheMarshalFailed.Error()), "target", entry.TargetID)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheCreateFailed.Error()), "target", entry.TargetID)
	}

	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "target", entry.TargetID)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "target", entry.TargetID)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "target", entry.TargetID)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "target", entry.TargetID)
	}

	return s.evict(dir, filepath.Base(filename), entry.TargetID)
}

// Invalidate removes every entry of the target.
func (s *Store) Invalidate(root, targetID string) error {
	if err := os.RemoveAll(s.targetDir(root, targetID)); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheEvictFailed.Error()), "target", targetID)
	}
	return nil
}

// Clear removes the whole cache directory.
func (s *Store) Clear(root string) error {
	dir := filepath.Join(root, domain.DefaultCachePath())
	if err := os.RemoveAll(dir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheEvictFailed.Error()), "path", dir)
	}
	return nil
}

func (s *Store) evict(dir, keep, targetID string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheEvictFailed.Error()), "target", targetID)
	}
	for _, e := range entries {
		if e.Name() == keep || e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrCacheEvictFailed.Error()), "target", targetID)
		}
	}
	return nil
}

func (s *Store) targetDir(root, targetID string) string {
	hash := sha256.Sum256([]byte(targetID))
	return filepath.Join(root, domain.DefaultCachePath(), hex.EncodeToString(hash[:]))
}

func (s *Store) entryFilename(root, targetID, fingerprint string) (string, error) {
	if !isHex(fingerprint) {
		return "", zerr.With(zerr.With(zerr.Wrap(domain.ErrCacheReadFailed, "fingerprint is not hex"), "target", targetID), "fingerprint", fingerprint)
	}
	return filepath.Join(s.targetDir(root, targetID), fingerprint+".json"), nil
}

func corruption(targetID, reason string) error {
	return zerr.With(zerr.Wrap(domain.ErrCacheCorruption, reason), "target", targetID)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
