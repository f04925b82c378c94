package domain

import "time"

// Artifact is the output of compiling one source unit. Once produced it is
// immutable and may be shared by reference across goroutines.
type Artifact struct {
	// Data is the compiled artifact bytes. The engine treats them as opaque.
	Data []byte

	// Exports and Imports are the symbol names the compiler reported for
	// this unit. They ride along as cache metadata.
	Exports []string
	Imports []string
}

// Size returns the artifact's byte size.
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// CacheEntry is a cached artifact plus its metadata. Entries are owned
// exclusively by the artifact cache; callers receive a copy whose lifetime
// is bounded to the query.
type CacheEntry struct {
	Key       CacheKey
	Artifact  Artifact
	CreatedAt time.Time
}

// Size returns the entry's accounted byte size.
func (e *CacheEntry) Size() int64 {
	return e.Artifact.Size()
}

// CacheStats is a snapshot of the artifact cache's counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Bytes     int64
}
