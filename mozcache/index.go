package mozcache

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dfirkit/mozreader/internal/binreader"
)

// ContentType is netwerk/cache2/nsICacheEntry.idl's cache-entry content
// classification.
type ContentType uint8

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeOther
	ContentTypeJavaScript
	ContentTypeImage
	ContentTypeMedia
	ContentTypeStylesheet
	ContentTypeWasm
)

// IndexHeader is the fixed 16-byte header of the cache's `index` file.
type IndexHeader struct {
	Version   uint32
	LastWrite time.Time
	IsDirty   uint32
	KBWritten uint32
}

// Index record flag bits, MSB-first named per the spec.
const (
	FlagInitialized uint32 = 0x80000000
	FlagAnonymous   uint32 = 0x40000000
	FlagRemoved     uint32 = 0x20000000
	FlagDirty       uint32 = 0x10000000
	FlagFresh       uint32 = 0x08000000
	FlagPinned      uint32 = 0x04000000
	FlagHasAltData  uint32 = 0x02000000
)

// indexRecordSize is the fixed on-disk size of one IndexRecord.
const indexRecordSize = 41

// IndexRecord is one fixed 41-byte record from the cache's `index` file.
type IndexRecord struct {
	SHA1Hex         string
	Frecency        float32
	FrecencyRaw     [4]byte
	OriginAttrsHash int64
	OnStartTime     uint16
	OnStopTime      uint16
	ContentType     ContentType
	Flags           uint32
}

// FileSizeKB is the low 24 bits of Flags.
func (r IndexRecord) FileSizeKB() uint32 { return r.Flags & 0x00ffffff }

// IsInitialized reports FlagInitialized.
func (r IndexRecord) IsInitialized() bool { return r.Flags&FlagInitialized != 0 }

// IsAnonymous reports FlagAnonymous.
func (r IndexRecord) IsAnonymous() bool { return r.Flags&FlagAnonymous != 0 }

// IsRemoved reports FlagRemoved.
func (r IndexRecord) IsRemoved() bool { return r.Flags&FlagRemoved != 0 }

// IsDirty reports FlagDirty.
func (r IndexRecord) IsDirty() bool { return r.Flags&FlagDirty != 0 }

// IsFresh reports FlagFresh.
func (r IndexRecord) IsFresh() bool { return r.Flags&FlagFresh != 0 }

// IsPinned reports FlagPinned.
func (r IndexRecord) IsPinned() bool { return r.Flags&FlagPinned != 0 }

// HasAltData reports FlagHasAltData.
func (r IndexRecord) HasAltData() bool { return r.Flags&FlagHasAltData != 0 }

// Index is the parsed header plus ordered record sequence from a cache
// `index` file.
type Index struct {
	Header  IndexHeader
	Records []IndexRecord
}

// ReadIndexFile reads the fixed 16-byte header and all whole 41-byte
// records from the index file at path. Trailing partial bytes (a hash or
// padding) are ignored.
func ReadIndexFile(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return Index{}, fmt.Errorf("opening cache index %s: %w", path, err)
	}
	defer f.Close()

	r := binreader.New(f)

	header, err := readIndexHeader(r)
	if err != nil {
		return Index{}, fmt.Errorf("reading cache index header: %w", err)
	}

	var records []IndexRecord
	for {
		ok, err := r.CanRead(indexRecordSize)
		if err != nil {
			return Index{}, fmt.Errorf("checking remaining cache index bytes: %w", err)
		}
		if !ok {
			break
		}
		rec, err := readIndexRecord(r)
		if err != nil {
			return Index{}, fmt.Errorf("reading cache index record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}

	return Index{Header: header, Records: records}, nil
}

func readIndexHeader(r *binreader.Reader) (IndexHeader, error) {
	version, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return IndexHeader{}, err
	}
	lastWrite, err := r.Datetime()
	if err != nil {
		return IndexHeader{}, err
	}
	isDirty, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return IndexHeader{}, err
	}
	kbWritten, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return IndexHeader{}, err
	}
	return IndexHeader{
		Version:   version,
		LastWrite: lastWrite,
		IsDirty:   isDirty,
		KBWritten: kbWritten,
	}, nil
}

func readIndexRecord(r *binreader.Reader) (IndexRecord, error) {
	sha1, err := r.ReadRaw(20)
	if err != nil {
		return IndexRecord{}, err
	}
	frecencyBytes, err := r.ReadRaw(4)
	if err != nil {
		return IndexRecord{}, err
	}
	var frecencyRaw [4]byte
	copy(frecencyRaw[:], frecencyBytes)
	frecency := math.Float32frombits(binary.BigEndian.Uint32(frecencyBytes))

	originAttrsHash, err := r.Int64(binary.BigEndian)
	if err != nil {
		return IndexRecord{}, err
	}
	onStart, err := r.Uint16(binary.BigEndian)
	if err != nil {
		return IndexRecord{}, err
	}
	onStop, err := r.Uint16(binary.BigEndian)
	if err != nil {
		return IndexRecord{}, err
	}
	contentTypeRaw, err := r.ReadRaw(1)
	if err != nil {
		return IndexRecord{}, err
	}
	flags, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return IndexRecord{}, err
	}

	return IndexRecord{
		SHA1Hex:         fmt.Sprintf("%x", sha1),
		Frecency:        frecency,
		FrecencyRaw:     frecencyRaw,
		OriginAttrsHash: originAttrsHash,
		OnStartTime:     onStart,
		OnStopTime:      onStop,
		ContentType:     ContentType(contentTypeRaw[0]),
		Flags:           flags,
	}, nil
}
