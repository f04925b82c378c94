// Package cas implements the content-addressed artifact cache and the
// fingerprint snapshot store.
package cas

import (
	"container/list"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactCache = (*Store)(nil)

const (
	objectsDir = "objects"
	indexFile  = "index.json"
)

// record is what the recency list and the persisted index hold per entry.
// Artifact bytes live in one file per key under objects/; only metadata is
// kept in memory.
type record struct {
	Key       domain.CacheKey `json:"key"`
	Size      int64           `json:"size"`
	Checksum  uint64          `json:"checksum"`
	CreatedAt time.Time       `json:"created_at"`
	Exports   []string        `json:"exports,omitzero"`
	Imports   []string        `json:"imports,omitzero"`
}

// indexSnapshot is the persisted form of the index, most recently used first.
type indexSnapshot struct {
	Entries []record `json:"entries"`
}

// Store is a size-bounded LRU artifact cache backed by the file system.
// A doubly-linked recency list plus a key index give O(1) get, put and
// evict. One mutex guards the list, the index and the size accounting;
// eviction happens under the same critical section as insertion.
type Store struct {
	dir        string
	maxEntries int
	maxBytes   int64
	clock      clock.Clock

	mu    sync.Mutex
	ll    *list.List // front = most recently used
	index map[domain.CacheKey]*list.Element
	bytes int64

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewStore opens (or creates) the cache directory and loads the persisted
// index. Index entries whose backing object file has disappeared are
// dropped. If the configured bounds shrank since the index was written,
// excess entries are evicted immediately.
func NewStore(cfg domain.CacheConfig, clk clock.Clock) (*Store, error) {
	s := &Store{
		dir:        filepath.Clean(cfg.Dir),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxSizeBytes,
		clock:      clk,
		ll:         list.New(),
		index:      make(map[domain.CacheKey]*list.Element),
	}

	if err := os.MkdirAll(filepath.Join(s.dir, objectsDir), 0o750); err != nil {
		return nil, errors.Join(domain.ErrCacheDirUnavailable,
			zerr.Wrap(err, "failed to create cache directory"))
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.evictWhileOverLocked(0, 0)
	s.mu.Unlock()

	return s, nil
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath()) //nolint:gosec // path derives from the configured cache dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Join(domain.ErrCacheDirUnavailable,
			zerr.Wrap(err, "failed to read cache index"))
	}
	if len(data) == 0 {
		return nil
	}

	var snap indexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A mangled index is recoverable: start cold rather than fail.
		return nil
	}

	for _, rec := range snap.Entries {
		if _, err := os.Stat(s.objectPath(rec.Key)); err != nil {
			continue
		}
		el := s.ll.PushBack(rec)
		s.index[rec.Key] = el
		s.bytes += rec.Size
	}
	return nil
}

// Get returns the entry for key, promoting it to most recently used.
// Missing or corrupt backing bytes degrade to a miss and evict the stale
// record.
func (s *Store) Get(key domain.CacheKey) (*domain.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[key]
	if !ok {
		s.misses++
		return nil, false
	}
	rec := el.Value.(record)

	data, err := os.ReadFile(s.objectPath(key)) //nolint:gosec // path derives from the cache key
	if err != nil || xxhash.Sum64(data) != rec.Checksum {
		s.removeLocked(el, true)
		s.misses++
		return nil, false
	}

	s.ll.MoveToFront(el)
	s.hits++

	return &domain.CacheEntry{
		Key: key,
		Artifact: domain.Artifact{
			Data:    data,
			Exports: rec.Exports,
			Imports: rec.Imports,
		},
		CreatedAt: rec.CreatedAt,
	}, true
}

// Put stores the entry at the most-recently-used position, evicting from
// the least-recently-used end until both bounds hold. An artifact that
// alone exceeds the byte bound is rejected with domain.ErrEntryTooLarge.
func (s *Store) Put(entry *domain.CacheEntry) error {
	size := entry.Size()
	if s.maxBytes > 0 && size > s.maxBytes {
		return errors.Join(domain.ErrEntryTooLarge,
			zerr.With(zerr.With(zerr.New("artifact exceeds cache size bound"),
				"key", string(entry.Key)),
				"size", size))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[entry.Key]; ok {
		s.removeLocked(el, false)
	}
	s.evictWhileOverLocked(size, 1)

	if err := os.WriteFile(s.objectPath(entry.Key), entry.Artifact.Data, 0o600); err != nil {
		return errors.Join(domain.ErrCacheDirUnavailable,
			zerr.Wrap(err, "failed to write cache object"))
	}

	rec := record{
		Key:       entry.Key,
		Size:      size,
		Checksum:  xxhash.Sum64(entry.Artifact.Data),
		CreatedAt: s.clock.Now(),
		Exports:   entry.Artifact.Exports,
		Imports:   entry.Artifact.Imports,
	}
	s.index[entry.Key] = s.ll.PushFront(rec)
	s.bytes += size

	if err := s.saveIndexLocked(); err != nil {
		return errors.Join(domain.ErrCacheDirUnavailable, err)
	}
	return nil
}

// Invalidate removes a single entry and its backing file.
func (s *Store) Invalidate(key domain.CacheKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		s.removeLocked(el, true)
		_ = s.saveIndexLocked()
	}
}

// Clear removes every entry and its backing storage.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, el := range s.index {
		delete(s.index, key)
		s.ll.Remove(el)
	}
	s.bytes = 0

	if err := os.RemoveAll(filepath.Join(s.dir, objectsDir)); err != nil {
		return errors.Join(domain.ErrCacheDirUnavailable,
			zerr.Wrap(err, "failed to remove cache objects"))
	}
	if err := os.MkdirAll(filepath.Join(s.dir, objectsDir), 0o750); err != nil {
		return errors.Join(domain.ErrCacheDirUnavailable,
			zerr.Wrap(err, "failed to recreate cache directory"))
	}
	return s.saveIndexLocked()
}

// Stats returns a snapshot of the cache counters.
func (s *Store) Stats() domain.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.CacheStats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Entries:   len(s.index),
		Bytes:     s.bytes,
	}
}

// Flush persists the index.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIndexLocked()
}

// Close flushes and releases the cache.
func (s *Store) Close() error {
	return s.Flush()
}

// evictWhileOverLocked evicts least-recently-used entries until the cache,
// plus an incoming entry of the given size and count, is within bounds.
func (s *Store) evictWhileOverLocked(incomingBytes int64, incomingCount int) {
	for s.overLocked(incomingBytes, incomingCount) {
		back := s.ll.Back()
		if back == nil {
			return
		}
		s.removeLocked(back, true)
		s.evictions++
	}
}

func (s *Store) overLocked(incomingBytes int64, incomingCount int) bool {
	if s.maxEntries > 0 && len(s.index)+incomingCount > s.maxEntries {
		return true
	}
	if s.maxBytes > 0 && s.bytes+incomingBytes > s.maxBytes {
		return true
	}
	return false
}

func (s *Store) removeLocked(el *list.Element, deleteFile bool) {
	rec := el.Value.(record)
	s.ll.Remove(el)
	delete(s.index, rec.Key)
	s.bytes -= rec.Size
	if deleteFile {
		_ = os.Remove(s.objectPath(rec.Key))
	}
}

func (s *Store) saveIndexLocked() error {
	snap := indexSnapshot{Entries: make([]record, 0, s.ll.Len())}
	for el := s.ll.Front(); el != nil; el = el.Next() {
		snap.Entries = append(snap.Entries, el.Value.(record))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Join(domain.ErrIndexWriteFailed,
			zerr.Wrap(err, "failed to encode cache index"))
	}
	if err := os.WriteFile(s.indexPath(), data, 0o600); err != nil {
		return errors.Join(domain.ErrIndexWriteFailed,
			zerr.Wrap(err, "failed to write cache index"))
	}
	return nil
}

func (s *Store) objectPath(key domain.CacheKey) string {
	return filepath.Join(s.dir, objectsDir, string(key))
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFile)
}
