package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey identifies a cached artifact. It is derived from a unit's own
// fingerprint and the cache keys of its dependencies, so two units share a
// key exactly when their own content and all transitively reachable
// dependency content are identical.
//
// Keys are assumed to be collision-free: they are SHA-256 digests, and the
// engine makes no attempt to detect or mitigate collisions.
type CacheKey string

// IsZero reports whether the key is unset.
func (k CacheKey) IsZero() bool {
	return k == ""
}

// ComputeCacheKey derives the cache key for a unit from its own fingerprint
// and the combined fingerprint of its dependencies' cache keys, as produced
// by ContentHasher.DependencyFingerprint.
//
// Callers must combine dependency *keys*, not bare fingerprints, and compute
// keys in topological order; that is what makes the key cover transitive
// dependency content.
func ComputeCacheKey(own, deps Fingerprint) CacheKey {
	h := sha256.New()
	_, _ = h.Write([]byte(own))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(deps))
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}
