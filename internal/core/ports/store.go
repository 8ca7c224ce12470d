package ports

import "go.trai.ch/bundler/internal/core/domain"

// ArtifactCache defines the interface of the output cache.
//
// It holds at most one entry per target: storing an artifact under a new
// fingerprint evicts every entry of that target under other fingerprints.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ArtifactCache interface {
	// Get returns the artifact stored for (targetID, fingerprint).
	// It returns nil, nil on a miss and never mutates the cache.
	// An unreadable entry yields an error wrapping domain.ErrCacheCorruption.
	Get(root, targetID, fingerprint string) (*domain.Artifact, error)

	// Put stores an entry, overwriting the same key and evicting other
	// fingerprints of the same target.
	Put(root string, entry domain.CacheEntry) error

	// Invalidate removes every entry of the target.
	Invalidate(root, targetID string) error

	// Clear removes the whole cache.
	Clear(root string) error
}
