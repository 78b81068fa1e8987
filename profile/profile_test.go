package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseWithNothingOpenedIsSafe(t *testing.T) {
	t.Parallel()

	p := Open(t.TempDir(), t.TempDir())
	require.NoError(t, p.Close())
}

func TestCacheFailsWhenCacheDirMissing(t *testing.T) {
	t.Parallel()

	p := Open(t.TempDir(), filepath.Join(t.TempDir(), "missing-cache"))
	_, err := p.Cache()
	require.Error(t, err)
}

func TestIndexedDBOriginsEmptyWhenStorageDefaultMissing(t *testing.T) {
	t.Parallel()

	p := Open(t.TempDir(), t.TempDir())
	origins, err := p.IndexedDBOrigins()
	require.NoError(t, err)
	require.Empty(t, origins)
}

func TestIndexedDBOriginsSkipsDirsWithoutIdbSubfolder(t *testing.T) {
	t.Parallel()

	profileDir := t.TempDir()
	storageDefault := filepath.Join(profileDir, "storage", "default")
	require.NoError(t, os.MkdirAll(filepath.Join(storageDefault, "https+++example.com"), 0o700))
	// No idb/ subfolder beneath it, so this origin should be skipped.

	p := Open(profileDir, t.TempDir())
	origins, err := p.IndexedDBOrigins()
	require.NoError(t, err)
	require.Empty(t, origins)
}

func TestIndexedDBUnknownOriginErrors(t *testing.T) {
	t.Parallel()

	p := Open(t.TempDir(), t.TempDir())
	_, err := p.IndexedDB("nonexistent-origin")
	require.Error(t, err)
}

func TestOriginMetadataReadsSidecar(t *testing.T) {
	t.Parallel()

	profileDir := t.TempDir()
	originDir := filepath.Join(profileDir, "storage", "default", "https+++example.com")
	require.NoError(t, os.MkdirAll(originDir, 0o700))

	// A minimal valid .metadata-v2: 8-byte timestamp + 1-byte persisted +
	// 8 reserved bytes + three empty length-prefixed strings + 1-byte isApp.
	raw := make([]byte, 8+1+8+4+4+4+1)
	require.NoError(t, os.WriteFile(filepath.Join(originDir, ".metadata-v2"), raw, 0o600))

	p := Open(profileDir, t.TempDir())
	meta, err := p.OriginMetadata("https+++example.com")
	require.NoError(t, err)
	require.Equal(t, "", meta.Origin)
}
