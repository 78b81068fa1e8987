package binreader

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newReader(b []byte) *Reader {
	return New(bytes.NewReader(b))
}

func TestReadRawExact(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2, 3, 4})
	got, err := r.ReadRaw(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestReadRawShort(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2})
	_, err := r.ReadRaw(4)
	require.ErrorIs(t, err, ErrShortRead)
	var short *ShortReadError
	require.ErrorAs(t, err, &short)
	require.Equal(t, 4, short.Wanted)
	require.Equal(t, 2, short.Got)
}

func TestUint32BigEndian(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{0x00, 0x00, 0x01, 0x00})
	v, err := r.Uint32(binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, uint32(256), v)
}

func TestUint32LittleEndian(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{0x00, 0x01, 0x00, 0x00})
	v, err := r.Uint32(binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint32(256), v)
}

func TestInt32Negative(t *testing.T) {
	t.Parallel()

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(int32(-5)))
	r := newReader(buf[:])
	v, err := r.Int32(binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, int32(-5), v)
}

func TestDatetime(t *testing.T) {
	t.Parallel()

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], 1700000000)
	r := newReader(buf[:])
	got, err := r.Datetime()
	require.NoError(t, err)
	require.True(t, got.Equal(time.Unix(1700000000, 0).UTC()))
}

func TestCanRead(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2, 3})
	ok, err := r.CanRead(3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.CanRead(4)
	require.NoError(t, err)
	require.False(t, ok)

	// CanRead must not consume bytes.
	got, err := r.ReadRaw(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestSeekAndTell(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2, 3, 4, 5})
	_, err := r.Seek(2, io.SeekStart)
	require.NoError(t, err)
	pos, err := r.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(2), pos)

	got, err := r.ReadRaw(1)
	require.NoError(t, err)
	require.Equal(t, []byte{3}, got)
}

func TestReadUntilEnd(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2, 3})
	_, err := r.ReadRaw(1)
	require.NoError(t, err)
	rest, err := r.ReadUntilEnd()
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3}, rest)
}

func TestSingleAndDouble(t *testing.T) {
	t.Parallel()

	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], 0x3f800000) // 1.0f
	binary.BigEndian.PutUint64(buf[4:12], 0x3ff0000000000000)

	r := newReader(buf[:])
	f32, err := r.Single(binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, float32(1.0), f32)

	f64, err := r.Double(binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, float64(1.0), f64)
}

func TestUTF8(t *testing.T) {
	t.Parallel()

	r := newReader([]byte("hello"))
	s, err := r.UTF8(5)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestSize(t *testing.T) {
	t.Parallel()

	r := newReader([]byte{1, 2, 3, 4})
	_, err := r.ReadRaw(1)
	require.NoError(t, err)

	size, err := r.Size()
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	// Size must restore the position it found.
	pos, err := r.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(1), pos)
}
