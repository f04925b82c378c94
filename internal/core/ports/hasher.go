// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/kiln/internal/core/domain"

// ContentHasher computes content fingerprints for source units.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type ContentHasher interface {
	// Fingerprint computes the fingerprint of the file's normalized bytes.
	// Implementations keep a path -> (mtime, fingerprint) memo so unchanged
	// files cost one stat, no read.
	//
	// An unreadable file returns an error wrapping domain.ErrUnitUnreadable;
	// callers must treat that unit as always changed.
	Fingerprint(path string) (domain.Fingerprint, error)

	// DependencyFingerprint combines a set of fingerprints into one stable
	// fingerprint, independent of input order.
	DependencyFingerprint(fingerprints []domain.Fingerprint) domain.Fingerprint
}
