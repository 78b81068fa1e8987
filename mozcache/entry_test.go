package mozcache

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// buildEntryFile assembles a minimal, valid v3 cache entry file: body data
// followed by its trailing metadata block and the self-describing offset
// Firefox appends at true EOF.
func buildEntryFile(t *testing.T, data []byte, rawKey string, elements map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(data)
	fileOffset := uint32(len(data))

	writeU32 := func(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); buf.Write(b[:]) }
	writeU16 := func(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); buf.Write(b[:]) }

	writeU32(0)     // metadataHash
	writeU16(0)     // one chunk hash (data fits in a single chunk)
	writeU32(3)     // version
	writeU32(1)     // fetchCount
	writeU32(1700000000) // lastFetched
	writeU32(1700000001) // lastModified
	writeU32(0x3f800000)  // frecency 1.0
	writeU32(1800000000) // expiration
	writeU32(uint32(len(rawKey))) // keySize
	writeU32(0)                   // flags
	buf.WriteString(rawKey)
	buf.WriteByte(0x00)

	var elementsBuf bytes.Buffer
	for name, value := range elements {
		elementsBuf.WriteString(name)
		elementsBuf.WriteByte(0x00)
		elementsBuf.WriteString(value)
		elementsBuf.WriteByte(0x00)
	}
	buf.Write(elementsBuf.Bytes())
	buf.WriteByte(0x00) // final element-list delimiter
	writeU32(fileOffset)

	path := filepath.Join(t.TempDir(), "entry")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestReadEntryMetadata(t *testing.T) {
	t.Parallel()

	path := buildEntryFile(t, []byte("hello world"), ":https://example.com/", map[string]string{
		"foo": "bar",
	})

	meta, err := ReadEntryMetadata(path)
	require.NoError(t, err)
	require.Equal(t, uint32(3), meta.Version)
	require.Equal(t, uint32(1), meta.FetchCount)
	require.Equal(t, "https://example.com/", meta.Key.URL)

	v, ok := meta.Element("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestReadEntryFile(t *testing.T) {
	t.Parallel()

	body := []byte("hello world")
	path := buildEntryFile(t, body, ":https://example.com/", map[string]string{
		"response-head": "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n",
	})

	entry, err := ReadEntryFile(path)
	require.NoError(t, err)
	require.Equal(t, body, entry.Data)

	ct, ok := entry.Header.Get("content-type")
	require.True(t, ok)
	require.Equal(t, "text/plain", ct)
}

func TestDecodedBodyGzip(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	_, err := gw.Write([]byte("plain body"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	path := buildEntryFile(t, compressed.Bytes(), ":https://example.com/", map[string]string{
		"response-head": "HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\n",
	})

	entry, err := ReadEntryFile(path)
	require.NoError(t, err)

	decoded, err := entry.DecodedBody()
	require.NoError(t, err)
	require.Equal(t, "plain body", string(decoded))
}

func TestDecodedBodyNoEncodingPassesThrough(t *testing.T) {
	t.Parallel()

	path := buildEntryFile(t, []byte("raw"), ":https://example.com/", nil)

	entry, err := ReadEntryFile(path)
	require.NoError(t, err)

	decoded, err := entry.DecodedBody()
	require.NoError(t, err)
	require.Equal(t, "raw", string(decoded))
}

func TestReadEntryMetadataRejectsBadVersion(t *testing.T) {
	t.Parallel()

	path := buildEntryFile(t, []byte("x"), ":https://example.com/", nil)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// Version field sits right after metadataHash(4) + one chunk hash(2),
	// at offset len(data)+6.
	versionOffset := len("x") + 4 + 2
	binary.BigEndian.PutUint32(raw[versionOffset:versionOffset+4], 99)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = ReadEntryMetadata(path)
	require.ErrorIs(t, err, ErrBadVersion)
}
