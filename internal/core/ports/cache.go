package ports

import "go.trai.ch/kiln/internal/core/domain"

// ArtifactCache is a bounded, content-addressed LRU store for compiled
// artifacts. Implementations are internally synchronized: workers call Put
// concurrently as they finish.
type ArtifactCache interface {
	// Get returns the entry for key and promotes it to most recently used.
	// A missing, unreadable or corrupt entry is a miss, never an error;
	// correctness must not depend on cache availability.
	Get(key domain.CacheKey) (*domain.CacheEntry, bool)

	// Put stores the entry at the most-recently-used position, evicting
	// least-recently-used entries (and their backing files) first so bounds
	// are never exceeded. An entry alone exceeding the byte bound is
	// rejected with domain.ErrEntryTooLarge. Any other error means the
	// cache directory itself is unusable.
	Put(entry *domain.CacheEntry) error

	// Invalidate removes a single entry.
	Invalidate(key domain.CacheKey)

	// Clear removes every entry and its backing storage.
	Clear() error

	// Stats returns a snapshot of hit/miss/eviction counters and current size.
	Stats() domain.CacheStats

	// Flush persists the index; Close flushes and releases the cache.
	Flush() error
	Close() error
}

// SnapshotStore persists the previous build's fingerprint snapshot,
// the input to change detection.
type SnapshotStore interface {
	// Load returns the stored snapshot, or an empty map if none exists.
	Load() (map[domain.InternedString]domain.Fingerprint, error)

	// Save replaces the stored snapshot.
	Save(snapshot map[domain.InternedString]domain.Fingerprint) error
}
