// Package mozclone decodes SpiderMonkey's structured-clone binary format:
// the little-endian tagged-pair stream IndexedDB (and session storage)
// records hold their values in. See js/src/vm/StructuredClone.cpp's
// JSStructuredCloneWriter for the encoder this mirrors.
package mozclone

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Kind discriminates the payload carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindUndefined
	KindBoolean
	KindInt32
	KindDouble
	KindString
	KindDate
	KindRegexp
	KindBigInt
	KindArray
	KindObject
	KindMap
	KindSet
	KindTypedArray
	KindArrayBuffer
	KindBlob
	KindFile
	KindCryptoKey
	// KindBackReference is never returned from Decode's root walk directly;
	// Document.Deref resolves it to the referenced value's Kind. It is
	// exposed so a caller reconstructing the graph by hand can detect a
	// reference and choose to defer following it (e.g. to avoid cycles in
	// Map/Set/Array/Object keys).
	KindBackReference
)

// KeyValue is one Object/Map entry. Map keys may be any Value, not just
// strings.
type KeyValue struct {
	Key   Value
	Value Value
}

// Regexp is a decoded RegExp object: its source pattern plus the flag letters
// SpiderMonkey encodes (note: 'i' and 'g' occupy different bit positions
// than in most other engines' serializations).
type Regexp struct {
	Source string
	Flags  string
}

// TypedArray is a materialized typed-array view over decoded backing bytes.
type TypedArray struct {
	Type ScalarType
	// Exactly one of the following is populated, selected by Type.
	Int8    []int8
	Uint8   []uint8
	Int16   []int16
	Uint16  []uint16
	Int32   []int32
	Uint32  []uint32
	Float32 []float32
	Float64 []float64
	Int64   []int64
	Uint64  []uint64
}

// Blob is a decoded DOM Blob: its stored byte length, MIME type, and the
// external file index a caller resolves against a record's file_ids table.
type Blob struct {
	Size        uint64
	MIMEType    string
	ExternalRef uint32
}

// File extends Blob with a name and (except for the legacy
// DOM_FILE_WITHOUT_LASTMODIFIEDDATE encoding) a last-modified time.
type File struct {
	Blob
	Name            string
	LastModified    time.Time
	HasLastModified bool
}

// CryptoKey is a decoded DOM CryptoKey descriptor.
type CryptoKey struct {
	AttributeFlags uint32
	SymmetricKey   []byte
	PrivateKey     []byte
	PublicKey      []byte
	AlgorithmName  string
	Algorithm      CryptoKeyAlgorithm
}

// CryptoKeyAlgorithm is the per-algorithm-family payload of a CryptoKey.
type CryptoKeyAlgorithm struct {
	Kind            string // "aes", "kdf", "hmac", "rsa", "ec", "ed"
	Length          uint32
	Hash            string
	ModulusLength   uint32
	PublicExponent  []byte
	NamedCurve      string
}

// Value is one node of a decoded structured-clone value graph. Exactly the
// fields relevant to Kind are meaningful.
type Value struct {
	Kind Kind

	Bool       bool
	Int32      int32
	Double     float64
	String     string
	Date       time.Time
	Regexp     Regexp
	BigInt     *big.Int
	Array      []Value
	Object     []KeyValue
	Map        []KeyValue
	Set        []Value
	TypedArray TypedArray
	Bytes      []byte // KindArrayBuffer's raw backing bytes
	Blob       Blob
	File       File
	CryptoKey  CryptoKey

	backrefIndex int
}

// Document is a fully decoded structured-clone stream: the root value plus
// the flattened-object table needed to resolve back-references anywhere in
// the graph.
type Document struct {
	Scope uint32
	Root  Value
	table []*Value
}

// ErrUnsupportedTag indicates a tag byte this decoder does not implement.
var ErrUnsupportedTag = errors.New("unsupported structured-clone tag")

// ErrInvalidBackref indicates a BACK_REFERENCE_OBJECT index outside the
// flattened-object table.
var ErrInvalidBackref = errors.New("invalid structured-clone back-reference")

// ErrTypedArrayBackingMismatch indicates a typed array's backing value did
// not decode to raw bytes (an ArrayBuffer or a back-reference to one).
var ErrTypedArrayBackingMismatch = errors.New("typed array backing value is not a byte buffer")

// UnsupportedTagError carries the offending tag for errors.As callers.
type UnsupportedTagError struct {
	Tag Tag
}

func (e *UnsupportedTagError) Error() string {
	return fmt.Sprintf("%s: 0x%08x", ErrUnsupportedTag, uint32(e.Tag))
}

func (e *UnsupportedTagError) Is(target error) bool { return target == ErrUnsupportedTag }

// Deref resolves v if it is a back-reference, returning v unchanged
// otherwise. A back-reference always points at an earlier-appended table
// entry, so no cycle detection is needed: the table only grows forward from
// the root.
func (d *Document) Deref(v Value) (Value, error) {
	if v.Kind != KindBackReference {
		return v, nil
	}
	if v.backrefIndex < 0 || v.backrefIndex >= len(d.table) {
		return Value{}, fmt.Errorf("%w: index %d (table has %d entries)", ErrInvalidBackref, v.backrefIndex, len(d.table))
	}
	return *d.table[v.backrefIndex], nil
}
