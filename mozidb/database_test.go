package mozidb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/require"
)

// nullDocumentStream is a minimal structured-clone stream decoding to a
// null root value: a header pair followed by a TagNull pair.
var nullDocumentStream = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf1, 0xff, // header pair (scope=0)
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, // TagNull pair
}

func TestDecodeInlineValue(t *testing.T) {
	t.Parallel()

	compressed := snappy.Encode(nil, nullDocumentStream)
	doc, err := decodeInlineValue(compressed)
	require.NoError(t, err)
	require.Equal(t, 0, int(doc.Root.Kind))
}

func TestUnixMicros(t *testing.T) {
	t.Parallel()

	got := unixMicros(1_000_000)
	require.True(t, got.Equal(unixEpoch.Add(time.Second)))
}

func TestDecodeExternalValueRejectsOutOfRangeIndex(t *testing.T) {
	t.Parallel()

	d := &Database{filesDir: t.TempDir()}
	_, err := d.decodeExternalValue(0, nil)
	require.Error(t, err)
}

func TestDecodeExternalValueRejectsNonDotFileID(t *testing.T) {
	t.Parallel()

	d := &Database{filesDir: t.TempDir()}
	_, err := d.decodeExternalValue(0, []string{"42"})
	require.Error(t, err)
}

func TestDecodeExternalValueUncompressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7"), nullDocumentStream, 0o600))

	d := &Database{filesDir: dir}
	doc, err := d.decodeExternalValue(0, []string{".7"})
	require.NoError(t, err)
	require.Equal(t, 0, int(doc.Root.Kind))
}

func TestDecodeExternalValueCompressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	_, err := w.Write(nullDocumentStream)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7"), buf.Bytes(), 0o600))

	d := &Database{filesDir: dir}
	// bit 32 (0x100000000) set marks the referenced file as framed-snappy.
	doc, err := d.decodeExternalValue(0x100000000, []string{".7"})
	require.NoError(t, err)
	require.Equal(t, 0, int(doc.Root.Kind))
}

func TestGetExternalDataFileDetails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "9"), []byte("x"), 0o600))

	d := &Database{filesDir: dir}

	path, ok := d.GetExternalDataFileDetails(".9")
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "9"), path)

	_, ok = d.GetExternalDataFileDetails(".missing")
	require.False(t, ok)
}

func TestGetExternalDataStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3"), []byte("payload"), 0o600))

	d := &Database{filesDir: dir}
	r, err := d.GetExternalDataStream(".3")
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 7)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
}

func TestObjectStoreByName(t *testing.T) {
	t.Parallel()

	d := &Database{objectStores: []ObjectStoreMetadata{
		{ID: 1, Name: "foo"},
		{ID: 2, Name: "bar"},
	}}

	meta, ok := d.ObjectStoreByName("bar")
	require.True(t, ok)
	require.Equal(t, int64(2), meta.ID)

	_, ok = d.ObjectStoreByName("missing")
	require.False(t, ok)
}
