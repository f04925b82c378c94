package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

const snapshotFile = "snapshot.json"

// SnapshotStore persists the previous build's fingerprint snapshot as a
// flat JSON file next to the cache index.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotStore creates a snapshot store rooted in the cache directory.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{
		path: filepath.Join(filepath.Clean(dir), snapshotFile),
	}
}

// Load returns the stored snapshot. A missing file is an empty snapshot;
// an unparsable file is treated the same, forcing a full change set.
func (s *SnapshotStore) Load() (map[domain.InternedString]domain.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[domain.InternedString]domain.Fingerprint)

	data, err := os.ReadFile(s.path) //nolint:gosec // path derives from the configured cache dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snapshot, nil
		}
		return snapshot, zerr.Wrap(err, "failed to read fingerprint snapshot")
	}
	if len(data) == 0 {
		return snapshot, nil
	}

	if err := json.Unmarshal(data, &snapshot); err != nil {
		return make(map[domain.InternedString]domain.Fingerprint), nil
	}
	return snapshot, nil
}

// Save replaces the stored snapshot.
func (s *SnapshotStore) Save(snapshot map[domain.InternedString]domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Join(domain.ErrSnapshotWriteFailed,
			zerr.Wrap(err, "failed to encode fingerprint snapshot"))
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return errors.Join(domain.ErrSnapshotWriteFailed,
			zerr.Wrap(err, "failed to create snapshot directory"))
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Join(domain.ErrSnapshotWriteFailed,
			zerr.Wrap(err, "failed to write fingerprint snapshot"))
	}
	return nil
}
