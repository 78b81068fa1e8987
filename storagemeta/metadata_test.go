package storagemeta

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMetadataFile(t *testing.T, timestampUS uint64, persisted bool, suffix, group, origin string, isApp bool) string {
	t.Helper()

	var buf []byte
	writeU64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	writeString := func(s string) {
		writeU32(uint32(len(s)))
		buf = append(buf, s...)
	}
	writeBool := func(v bool) {
		if v {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	writeU64(timestampUS)
	writeBool(persisted)
	buf = append(buf, make([]byte, 8)...) // reserved
	writeString(suffix)
	writeString(group)
	writeString(origin)
	writeBool(isApp)

	path := filepath.Join(t.TempDir(), ".metadata-v2")
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func TestReadMetadata(t *testing.T) {
	t.Parallel()

	path := buildMetadataFile(t, 1700000000000000, true, "^userContextId=1", "example.com", "https://example.com", false)

	meta, err := Read(path)
	require.NoError(t, err)
	require.True(t, meta.Persisted)
	require.Equal(t, "^userContextId=1", meta.Suffix)
	require.Equal(t, "example.com", meta.Group)
	require.Equal(t, "https://example.com", meta.Origin)
	require.False(t, meta.IsApp)
	require.Equal(t, int64(1700000000000000), meta.Timestamp.Sub(unixEpoch).Microseconds())
}

func TestReadMetadataEmptyStrings(t *testing.T) {
	t.Parallel()

	path := buildMetadataFile(t, 0, false, "", "", "", true)

	meta, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "", meta.Suffix)
	require.True(t, meta.IsApp)
	require.True(t, meta.Timestamp.Equal(unixEpoch))
}

func TestReadMetadataMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestReadMetadataTruncated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".metadata-v2")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	_, err := Read(path)
	require.Error(t, err)
}
