// Package fs implements the content hasher adapter.
package fs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"slices"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ContentHasher = (*Hasher)(nil)

// memoEntry caches the last observed stat and the fingerprint it produced.
type memoEntry struct {
	mtime int64
	size  int64
	fp    domain.Fingerprint
}

// Hasher computes SHA-256 fingerprints over newline-normalized file bytes.
// A per-path memo keyed on (mtime, size) turns repeated fingerprinting of
// unchanged files into a single stat call.
type Hasher struct {
	mu   sync.Mutex
	memo map[string]memoEntry
}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{
		memo: make(map[string]memoEntry),
	}
}

// Fingerprint computes the fingerprint for the file at path.
func (h *Hasher) Fingerprint(path string) (domain.Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Join(
			zerr.With(zerr.Wrap(err, "failed to stat unit"), "path", path),
			domain.ErrUnitUnreadable)
	}

	mtime := info.ModTime().UnixNano()
	size := info.Size()

	h.mu.Lock()
	if entry, ok := h.memo[path]; ok && entry.mtime == mtime && entry.size == size {
		h.mu.Unlock()
		return entry.fp, nil
	}
	h.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the project definition
	if err != nil {
		return "", errors.Join(
			zerr.With(zerr.Wrap(err, "failed to read unit"), "path", path),
			domain.ErrUnitUnreadable)
	}

	sum := sha256.Sum256(normalizeLineEndings(data))
	fp := domain.Fingerprint(hex.EncodeToString(sum[:]))

	h.mu.Lock()
	h.memo[path] = memoEntry{mtime: mtime, size: size, fp: fp}
	h.mu.Unlock()

	return fp, nil
}

// DependencyFingerprint combines fingerprints into a single stable
// fingerprint. Inputs are sorted first, so the result does not depend on
// dependency declaration order.
func (h *Hasher) DependencyFingerprint(fingerprints []domain.Fingerprint) domain.Fingerprint {
	sorted := make([]domain.Fingerprint, len(fingerprints))
	copy(sorted, fingerprints)
	slices.Sort(sorted)

	digest := sha256.New()
	for _, fp := range sorted {
		_, _ = digest.Write([]byte(fp))
		_, _ = digest.Write([]byte{0})
	}
	return domain.Fingerprint(hex.EncodeToString(digest.Sum(nil)))
}

// normalizeLineEndings maps CRLF and lone CR to LF so the same content
// hashes identically across platforms.
func normalizeLineEndings(data []byte) []byte {
	if !bytes.ContainsRune(data, '\r') {
		return data
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}
