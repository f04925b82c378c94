// Package domain contains the core domain model for the incremental
// compilation engine: source units, the module dependency graph,
// fingerprints, cache keys and build results.
package domain

// Fingerprint is the content hash of a unit's normalized bytes,
// encoded as lowercase hex.
type Fingerprint string

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == ""
}

// SourceUnit represents one compilable module: a stable identifier, the
// path of its source, and the identifiers of the modules it imports.
// Dependency lists are fully resolved by the time a unit reaches the
// engine; the engine never discovers imports itself.
//
// A unit is re-fingerprinted on every build and never mutated
// concurrently. Each build works on a fresh snapshot of the project.
type SourceUnit struct {
	ID           InternedString
	Path         string
	Dependencies []InternedString

	// Fingerprint is filled in by the scan phase of the current build.
	Fingerprint Fingerprint
}

// Project is the set of source units a build operates on.
type Project struct {
	Root  string
	Units []SourceUnit
}

// Unit returns the unit with the given id, if present.
func (p *Project) Unit(id InternedString) (SourceUnit, bool) {
	for _, u := range p.Units {
		if u.ID == id {
			return u, true
		}
	}
	return SourceUnit{}, false
}
