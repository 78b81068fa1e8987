package mozstorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dfirkit/mozreader/storagemeta"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/require"
)

func TestDecodeLocalStorageValueUTF8Uncompressed(t *testing.T) {
	t.Parallel()

	v, err := decodeLocalStorageValue([]byte("hello"), ConversionUTF8, CompressionNone)
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestDecodeLocalStorageValueUTF16Uncompressed(t *testing.T) {
	t.Parallel()

	raw := []byte{0x00, 'h', 0x00, 'i'}
	v, err := decodeLocalStorageValue(raw, ConversionUTF16, CompressionNone)
	require.NoError(t, err)
	require.Equal(t, "hi", v)
}

func TestDecodeLocalStorageValueSnappyCompressed(t *testing.T) {
	t.Parallel()

	compressed := snappy.Encode(nil, []byte("compressed value"))
	v, err := decodeLocalStorageValue(compressed, ConversionUTF8, CompressionSnappy)
	require.NoError(t, err)
	require.Equal(t, "compressed value", v)
}

func TestDecodeLocalStorageValueEmpty(t *testing.T) {
	t.Parallel()

	v, err := decodeLocalStorageValue(nil, ConversionUTF8, CompressionNone)
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestDecodeLocalStorageValueUnexpectedConversionType(t *testing.T) {
	t.Parallel()

	_, err := decodeLocalStorageValue([]byte("x"), ConversionType(99), CompressionNone)
	require.Error(t, err)
}

func TestDecodeLocalStorageValueUnexpectedCompressionType(t *testing.T) {
	t.Parallel()

	_, err := decodeLocalStorageValue([]byte("x"), ConversionUTF8, CompressionType(99))
	require.Error(t, err)
}

func TestDecodeUTF16BERejectsOddLength(t *testing.T) {
	t.Parallel()

	_, err := decodeUTF16BE([]byte{0x00})
	require.Error(t, err)
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	require.True(t, fileExists(file))
	require.False(t, fileExists(filepath.Join(dir, "absent")))
	require.False(t, fileExists(dir))
}

func TestLocalStoreStorageKeysAndMetadataFor(t *testing.T) {
	t.Parallel()

	ls := &LocalStore{hosts: map[string]localStorageHost{
		"https://example.com": {dbPath: "/tmp/example/ls/data.sqlite"},
	}}

	require.Equal(t, []string{"https://example.com"}, ls.StorageKeys())

	host, ok := ls.MetadataFor("https://example.com")
	require.True(t, ok)
	require.Equal(t, storagemeta.Metadata{}, host)

	_, ok = ls.MetadataFor("https://missing.example")
	require.False(t, ok)
}
