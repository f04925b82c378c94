package cas_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func newStore(t *testing.T, dir string, maxEntries int, maxBytes int64) *cas.Store {
	t.Helper()
	s, err := cas.NewStore(domain.CacheConfig{
		Dir:          dir,
		MaxEntries:   maxEntries,
		MaxSizeBytes: maxBytes,
	}, clock.NewMock())
	require.NoError(t, err)
	return s
}

func entry(key string, data string) *domain.CacheEntry {
	return &domain.CacheEntry{
		Key:      domain.CacheKey(key),
		Artifact: domain.Artifact{Data: []byte(data)},
	}
}

func TestStore_PutGet(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 0)

	require.NoError(t, s.Put(entry("k1", "artifact-bytes")))

	got, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("artifact-bytes"), got.Artifact.Data)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len("artifact-bytes")), stats.Bytes)
}

func TestStore_Put_ReplacesExisting(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 0)

	require.NoError(t, s.Put(entry("k1", "v1")))
	require.NoError(t, s.Put(entry("k1", "longer-v2")))

	got, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("longer-v2"), got.Artifact.Data)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len("longer-v2")), stats.Bytes)
}

func TestStore_LRUEviction_EntryBound(t *testing.T) {
	s := newStore(t, t.TempDir(), 2, 0)

	require.NoError(t, s.Put(entry("a", "aa")))
	require.NoError(t, s.Put(entry("b", "bb")))

	// Touch a so b becomes least recently used.
	_, ok := s.Get("a")
	require.True(t, ok)

	require.NoError(t, s.Put(entry("c", "cc")))

	_, ok = s.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
}

func TestStore_LRUEviction_ByteBound(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 10)

	require.NoError(t, s.Put(entry("a", "aaaa"))) // 4 bytes
	require.NoError(t, s.Put(entry("b", "bbbb"))) // 8 bytes total
	require.NoError(t, s.Put(entry("c", "cccc"))) // would be 12, evicts a

	_, ok := s.Get("a")
	assert.False(t, ok)

	stats := s.Stats()
	assert.LessOrEqual(t, stats.Bytes, int64(10))
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestStore_Put_EntryTooLarge(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 4)

	err := s.Put(entry("big", "way-too-big"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEntryTooLarge))

	// The oversize entry must not displace anything or be stored.
	_, ok := s.Get("big")
	assert.False(t, ok)
}

func TestStore_CorruptObjectIsMiss(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 0, 0)

	require.NoError(t, s.Put(entry("k1", "pristine")))

	// Flip the backing bytes behind the store's back.
	objPath := filepath.Join(dir, "objects", "k1")
	require.NoError(t, os.WriteFile(objPath, []byte("tampered"), 0o600))

	_, ok := s.Get("k1")
	assert.False(t, ok, "corrupt entry must degrade to a miss")

	// The stale record is gone; a subsequent get is a plain miss.
	_, ok = s.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	s1 := newStore(t, dir, 0, 0)
	require.NoError(t, s1.Put(entry("k1", "persisted")))
	require.NoError(t, s1.Close())

	s2 := newStore(t, dir, 0, 0)
	got, ok := s2.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), got.Artifact.Data)
}

func TestStore_ShrunkenBoundsEvictOnOpen(t *testing.T) {
	dir := t.TempDir()

	s1 := newStore(t, dir, 0, 0)
	require.NoError(t, s1.Put(entry("a", "aa")))
	require.NoError(t, s1.Put(entry("b", "bb")))
	require.NoError(t, s1.Put(entry("c", "cc")))
	require.NoError(t, s1.Close())

	s2 := newStore(t, dir, 2, 0)
	assert.Equal(t, 2, s2.Stats().Entries)
}

func TestStore_Invalidate(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 0)

	require.NoError(t, s.Put(entry("k1", "v")))
	s.Invalidate("k1")

	_, ok := s.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Stats().Bytes)
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, 0, 0)

	require.NoError(t, s.Put(entry("a", "aa")))
	require.NoError(t, s.Put(entry("b", "bb")))
	require.NoError(t, s.Clear())

	stats := s.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Bytes)

	entries, err := os.ReadDir(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_MangledIndexStartsCold(t *testing.T) {
	dir := t.TempDir()

	s1 := newStore(t, dir, 0, 0)
	require.NoError(t, s1.Put(entry("k1", "v")))
	require.NoError(t, s1.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0o600))

	s2 := newStore(t, dir, 0, 0)
	_, ok := s2.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, s2.Stats().Entries)
}

func TestStore_MetadataRoundTrip(t *testing.T) {
	s := newStore(t, t.TempDir(), 0, 0)

	require.NoError(t, s.Put(&domain.CacheEntry{
		Key: "k1",
		Artifact: domain.Artifact{
			Data:    []byte("obj"),
			Exports: []string{"Foo", "Bar"},
			Imports: []string{"Baz"},
		},
	}))

	got, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []string{"Foo", "Bar"}, got.Artifact.Exports)
	assert.Equal(t, []string{"Baz"}, got.Artifact.Imports)
}
