// Package binreader provides typed reads over a seekable byte stream, shared
// by the cache (big-endian) and structured-clone (little-endian) decoders.
// The endianness of a multi-byte read is supplied per call rather than fixed
// per reader, since a single profile decode mixes both.
package binreader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ErrShortRead is returned when fewer bytes remain in the stream than were
// requested.
var ErrShortRead = errors.New("short read")

// ShortReadError carries the offset and counts behind an ErrShortRead.
type ShortReadError struct {
	Offset  int64
	Wanted  int
	Got     int
	Wrapped error
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at offset %d: wanted %d bytes, got %d", e.Offset, e.Wanted, e.Got)
}

func (e *ShortReadError) Unwrap() error { return e.Wrapped }

func (e *ShortReadError) Is(target error) bool { return target == ErrShortRead }

// Reader wraps an io.ReadSeeker with the typed reads the cache and
// structured-clone decoders need.
type Reader struct {
	rs io.ReadSeeker
}

// New wraps rs for typed reading.
func New(rs io.ReadSeeker) *Reader {
	return &Reader{rs: rs}
}

// Tell returns the current stream position.
func (r *Reader) Tell() (int64, error) {
	return r.rs.Seek(0, io.SeekCurrent)
}

// Seek repositions the stream, per io.Seeker semantics.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	return r.rs.Seek(offset, whence)
}

// Size returns the total length of the underlying stream, restoring the
// current position afterwards.
func (r *Reader) Size() (int64, error) {
	cur, err := r.Tell()
	if err != nil {
		return 0, err
	}
	end, err := r.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// ReadRaw reads exactly n bytes, failing with ErrShortRead if fewer remain.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binreader: negative read length %d", n)
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r.rs, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("binreader: reading %d bytes: %w", n, err)
	}
	if got < n {
		offset, _ := r.Tell()
		return nil, &ShortReadError{Offset: offset - int64(got), Wanted: n, Got: got, Wrapped: ErrShortRead}
	}
	return buf, nil
}

// ReadUntilEnd reads all remaining bytes in the stream.
func (r *Reader) ReadUntilEnd() ([]byte, error) {
	b, err := io.ReadAll(r.rs)
	if err != nil {
		return nil, fmt.Errorf("binreader: reading to end: %w", err)
	}
	return b, nil
}

// CanRead reports whether at least n bytes remain, without consuming any of
// them.
func (r *Reader) CanRead(n int) (bool, error) {
	cur, err := r.Tell()
	if err != nil {
		return false, err
	}
	size, err := r.Size()
	if err != nil {
		return false, err
	}
	return size-cur >= int64(n), nil
}

func (r *Reader) Uint16(order binary.ByteOrder) (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

func (r *Reader) Uint32(order binary.ByteOrder) (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (r *Reader) Uint64(order binary.ByteOrder) (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

func (r *Reader) Int16(order binary.ByteOrder) (int16, error) {
	v, err := r.Uint16(order)
	return int16(v), err
}

func (r *Reader) Int32(order binary.ByteOrder) (int32, error) {
	v, err := r.Uint32(order)
	return int32(v), err
}

func (r *Reader) Int64(order binary.ByteOrder) (int64, error) {
	v, err := r.Uint64(order)
	return int64(v), err
}

// Single reads an IEEE-754 single-precision float.
func (r *Reader) Single(order binary.ByteOrder) (float32, error) {
	v, err := r.Uint32(order)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Double reads an IEEE-754 double-precision float.
func (r *Reader) Double(order binary.ByteOrder) (float64, error) {
	v, err := r.Uint64(order)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Datetime reads a big-endian unix-seconds uint32 and returns the
// corresponding UTC time.
func (r *Reader) Datetime() (time.Time, error) {
	secs, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

// UTF8 reads n bytes and returns them as a string verbatim.
func (r *Reader) UTF8(n int) (string, error) {
	b, err := r.ReadRaw(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
