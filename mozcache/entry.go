package mozcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/dfirkit/mozreader/internal/binreader"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// chunkSize is netwerk/cache2/CacheFileChunk.h's chunk size constant.
const chunkSize = 256 * 1024

// Metadata is a version-3 cache entry's trailing metadata block (version 3
// is the only version this reader understands; any other version fails
// with ErrBadVersion).
type Metadata struct {
	MetadataHash uint32
	ChunkHashes  []uint16
	Version      uint32
	FetchCount   uint32
	LastFetched  time.Time
	LastModified time.Time
	Frecency     float32
	Expiration   time.Time
	KeySize      uint32
	Flags        uint32
	Key          Key
	Offset       uint32
	Elements     map[string]string
}

// IsPinned reports metadata flag bit 0.
func (m Metadata) IsPinned() bool { return m.Flags&0x1 != 0 }

// Element looks up a metadata element by name, case-insensitively (names
// are stored case-folded already).
func (m Metadata) Element(name string) (string, bool) {
	v, ok := m.Elements[strings.ToLower(name)]
	return v, ok
}

// Entry is a fully read cache entry: its metadata, cached body bytes, and
// the HTTP header overlay computed from the metadata elements.
type Entry struct {
	Path     string
	Metadata Metadata
	Data     []byte
	Header   Headers
}

// ReadEntryMetadata reads only the trailing metadata block of the entry
// file at path (steps 1-2 of §4.5), without reading the (potentially
// large) body.
func ReadEntryMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening cache entry %s: %w", path, err)
	}
	defer f.Close()

	r := binreader.New(f)
	_, metadata, err := readOffsetAndMetadata(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading cache entry metadata for %s: %w", path, err)
	}
	return metadata, nil
}

// ReadEntryFile reads a complete cache entry: metadata, body data, and the
// derived HTTP header overlay.
func ReadEntryFile(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("opening cache entry %s: %w", path, err)
	}
	defer f.Close()

	r := binreader.New(f)
	offset, metadata, err := readOffsetAndMetadata(r)
	if err != nil {
		return Entry{}, fmt.Errorf("reading cache entry metadata for %s: %w", path, err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Entry{}, fmt.Errorf("seeking to start of %s: %w", path, err)
	}
	data, err := r.ReadRaw(int(offset))
	if err != nil {
		return Entry{}, fmt.Errorf("reading %d bytes of cached data from %s: %w", offset, path, err)
	}

	header := headerOverlay(metadata)

	return Entry{Path: path, Metadata: metadata, Data: data, Header: header}, nil
}

// headerOverlay computes §C2's HTTP header overlay: prefer
// original-response-headers, fall back to response-head, else empty.
func headerOverlay(metadata Metadata) Headers {
	raw, ok := metadata.Element("original-response-headers")
	if !ok {
		raw, ok = metadata.Element("response-head")
	}
	if !ok {
		_, _, empty := ParseHTTPHeaders("")
		return empty
	}
	_, _, headers := ParseHTTPHeaders(raw)
	return headers
}

// readOffsetAndMetadata implements steps 1-2 of §4.5: read the trailing
// 4-byte big-endian offset, then decode the metadata block starting there.
func readOffsetAndMetadata(r *binreader.Reader) (uint32, Metadata, error) {
	if _, err := r.Seek(-4, io.SeekEnd); err != nil {
		return 0, Metadata{}, fmt.Errorf("seeking to trailing offset: %w", err)
	}
	offset, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return 0, Metadata{}, fmt.Errorf("reading trailing offset: %w", err)
	}

	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return 0, Metadata{}, fmt.Errorf("seeking to metadata at offset %d: %w", offset, err)
	}
	chunkCount := int(math.Ceil(float64(offset) / float64(chunkSize)))

	metadata, err := readMetadata(r, chunkCount)
	if err != nil {
		return 0, Metadata{}, err
	}
	if metadata.Offset != offset {
		return 0, Metadata{}, fmt.Errorf("%w: metadata offset %d does not match trailing offset %d", ErrMalformedMetadata, metadata.Offset, offset)
	}

	return offset, metadata, nil
}

func readMetadata(r *binreader.Reader, chunkCount int) (Metadata, error) {
	metadataHash, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}

	chunkHashes := make([]uint16, chunkCount)
	for i := range chunkHashes {
		chunkHashes[i], err = r.Uint16(binary.BigEndian)
		if err != nil {
			return Metadata{}, err
		}
	}

	version, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}
	if version != 3 {
		return Metadata{}, fmt.Errorf("%w: expected 3, got %d", ErrBadVersion, version)
	}

	fetchCount, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}
	lastFetched, err := r.Datetime()
	if err != nil {
		return Metadata{}, err
	}
	lastModified, err := r.Datetime()
	if err != nil {
		return Metadata{}, err
	}
	frecency, err := r.Single(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}
	expiration, err := r.Datetime()
	if err != nil {
		return Metadata{}, err
	}
	keySize, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}
	flags, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return Metadata{}, err
	}

	rawKey, err := r.UTF8(int(keySize) + 1)
	if err != nil {
		return Metadata{}, err
	}
	if !strings.HasSuffix(rawKey, "\x00") {
		return Metadata{}, fmt.Errorf("%w: key does not end with NUL", ErrMalformedMetadata)
	}
	key, err := ParseKey(rawKey[:len(rawKey)-1])
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing cache key: %w", err)
	}

	elementsRaw, err := r.ReadUntilEnd()
	if err != nil {
		return Metadata{}, err
	}
	if len(elementsRaw) < 4 {
		return Metadata{}, fmt.Errorf("%w: elements block too short to hold trailing offset", ErrMalformedMetadata)
	}
	offset := binary.BigEndian.Uint32(elementsRaw[len(elementsRaw)-4:])
	elementsRaw = elementsRaw[:len(elementsRaw)-4]

	if len(elementsRaw) == 0 || elementsRaw[len(elementsRaw)-1] != 0x00 {
		return Metadata{}, fmt.Errorf("%w: missing final delimiting 0x00", ErrMalformedMetadata)
	}
	elementsRaw = elementsRaw[:len(elementsRaw)-1]

	parts := bytes.Split(elementsRaw, []byte{0x00})
	// bytes.Split on an empty slice yields one empty element; treat that
	// as "no elements" rather than an odd count.
	if len(parts) == 1 && len(parts[0]) == 0 {
		parts = nil
	}
	if len(parts)%2 != 0 {
		return Metadata{}, fmt.Errorf("%w: odd number of elements", ErrMalformedMetadata)
	}

	elements := make(map[string]string, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		elements[strings.ToLower(string(parts[i]))] = string(parts[i+1])
	}

	return Metadata{
		MetadataHash: metadataHash,
		ChunkHashes:  chunkHashes,
		Version:      version,
		FetchCount:   fetchCount,
		LastFetched:  lastFetched,
		LastModified: lastModified,
		Frecency:     frecency,
		Expiration:   expiration,
		KeySize:      keySize,
		Flags:        flags,
		Key:          key,
		Offset:       offset,
		Elements:     elements,
	}, nil
}

// DecodedBody returns e.Data after reversing any Content-Encoding declared
// in the header overlay (gzip, deflate, or br). If no recognized encoding
// is present, the raw bytes are returned unchanged. This is an optional
// convenience beyond the core decode contract: most cache inspection never
// needs it, so it is lazy and only invoked on demand.
func (e Entry) DecodedBody() ([]byte, error) {
	encoding, ok := e.Header.Get("Content-Encoding")
	if !ok {
		return e.Data, nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(e.Data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip cache body: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(e.Data))
		defer fr.Close()
		return io.ReadAll(fr)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(e.Data)))
	default:
		return e.Data, nil
	}
}
