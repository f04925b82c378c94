package domain

import "time"

// BuildResult summarizes one Build call. It is created fresh per build and
// owned solely by the caller.
type BuildResult struct {
	// Compiled lists modules that were compiled this build.
	Compiled []InternedString
	// CacheHits lists modules served from the artifact cache.
	CacheHits []InternedString
	// Failed lists modules whose compilation failed.
	Failed []InternedString
	// Skipped lists modules not compiled because a transitive dependency
	// failed.
	Skipped []InternedString

	Duration time.Duration
}

// HitRatio returns the fraction of the rebuild set served from cache.
// An empty rebuild set counts as a full hit.
func (r *BuildResult) HitRatio() float64 {
	total := len(r.CacheHits) + len(r.Compiled) + len(r.Failed) + len(r.Skipped)
	if total == 0 {
		return 1.0
	}
	return float64(len(r.CacheHits)) / float64(total)
}

// OK reports whether every module in the rebuild set was compiled or
// served from cache.
func (r *BuildResult) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}
