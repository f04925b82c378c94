package cas_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestSnapshotStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := cas.NewSnapshotStore(dir)

	snapshot := map[domain.InternedString]domain.Fingerprint{
		domain.NewInternedString("core"): "fp-core",
		domain.NewInternedString("app"):  "fp-app",
	}
	require.NoError(t, s.Save(snapshot))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}

func TestSnapshotStore_MissingFileIsEmpty(t *testing.T) {
	s := cas.NewSnapshotStore(t.TempDir())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSnapshotStore_UnparsableFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot.json"), []byte("{oops"), 0o600))

	s := cas.NewSnapshotStore(dir)
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	dir := t.TempDir()
	s := cas.NewSnapshotStore(dir)

	require.NoError(t, s.Save(map[domain.InternedString]domain.Fingerprint{
		domain.NewInternedString("old"): "fp-old",
	}))
	require.NoError(t, s.Save(map[domain.InternedString]domain.Fingerprint{
		domain.NewInternedString("new"): "fp-new",
	}))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, domain.Fingerprint("fp-new"), loaded[domain.NewInternedString("new")])
}
