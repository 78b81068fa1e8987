package mozclone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/dfirkit/mozreader/internal/binreader"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder walks one structured-clone byte stream, accumulating the
// flattened-object table as it goes.
type decoder struct {
	r     *binreader.Reader
	table []*Value
}

// Decode decodes a complete structured-clone stream, starting with its
// HEADER pair and then one top-level value.
func Decode(raw []byte) (*Document, error) {
	r := binreader.New(newByteReadSeeker(raw))
	d := &decoder{r: r}

	headerTag, scope, err := d.nextPair()
	if err != nil {
		return nil, fmt.Errorf("reading header pair: %w", err)
	}
	if Tag(headerTag) != Header {
		return nil, fmt.Errorf("structured clone stream does not start with a header tag (got 0x%08x)", headerTag)
	}

	root, err := d.read()
	if err != nil {
		if errors.Is(err, errEndOfKeys) {
			return nil, fmt.Errorf("END_OF_KEYS tag outside a collection key slot (%s)", err.Error())
		}
		return nil, err
	}

	return &Document{Scope: scope, Root: root, table: d.table}, nil
}

// alignPair seeks forward to the next 8-byte boundary, as required before
// every top-level pair read.
func (d *decoder) alignPair() error {
	pos, err := d.r.Tell()
	if err != nil {
		return err
	}
	if rem := pos % 8; rem != 0 {
		if _, err := d.r.Seek(8-rem, io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

// nextPair aligns to the next 8-byte boundary, then reads a little-endian
// (data, tag) pair.
func (d *decoder) nextPair() (tag uint32, data uint32, err error) {
	if err = d.alignPair(); err != nil {
		return 0, 0, err
	}
	data, err = d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return 0, 0, err
	}
	tag, err = d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return 0, 0, err
	}
	return tag, data, nil
}

// read reads one top-level pair and decodes the value it introduces.
func (d *decoder) read() (Value, error) {
	tag, data, err := d.nextPair()
	if err != nil {
		return Value{}, err
	}
	return d.readValue(tag, data)
}

// readValue decodes the value introduced by an already-read (tag, data)
// pair.
func (d *decoder) readValue(tag uint32, data uint32) (Value, error) {
	if tag < uint32(FloatMax) {
		return Value{Kind: KindDouble, Double: pairToDouble(tag, data)}, nil
	}

	switch Tag(tag) {
	case TagNull:
		return Value{Kind: KindNull}, nil
	case TagUndefined:
		return Value{Kind: KindUndefined}, nil
	case TagBoolean, TagBooleanObject:
		v := Value{Kind: KindBoolean, Bool: data != 0}
		if Tag(tag) == TagBooleanObject {
			d.flatten(&v)
		}
		return v, nil
	case TagInt32:
		return Value{Kind: KindInt32, Int32: int32(data)}, nil
	case TagString, TagStringObject:
		s, err := d.readString(data)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: KindString, String: s}
		if Tag(tag) == TagStringObject {
			d.flatten(&v)
		}
		return v, nil
	case TagDateObject:
		ms, err := d.readDouble()
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: KindDate, Date: epochMillis(ms)}
		d.flatten(&v)
		return v, nil
	case TagRegexpObject:
		source, err := d.readStringPair()
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: KindRegexp, Regexp: Regexp{Source: source, Flags: regexpFlags(data)}}
		d.flatten(&v)
		return v, nil
	case TagBigInt, TagBigIntObject:
		bi, err := d.readBigInt(data)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: KindBigInt, BigInt: bi}
		if Tag(tag) == TagBigIntObject {
			d.flatten(&v)
		}
		return v, nil
	case TagNumberObject:
		f, err := d.readDouble()
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: KindDouble, Double: f}
		d.flatten(&v)
		return v, nil
	case TagBackReferenceObject:
		return Value{Kind: KindBackReference, backrefIndex: int(data)}, nil
	case TagArrayObject:
		return d.readArray(data)
	case TagObjectObject:
		return d.readObject()
	case TagMapObject:
		return d.readMap()
	case TagSetObject:
		return d.readSet()
	case TagTypedArrayObject, TagTypedArrayObjectV2:
		return d.readTypedArray(Tag(tag), data)
	case TagArrayBufferObject:
		length, err := d.r.Uint64(binary.LittleEndian)
		if err != nil {
			return Value{}, err
		}
		buf, err := d.r.ReadRaw(int(length))
		if err != nil {
			return Value{}, err
		}
		v := newArrayBufferValue(buf)
		d.flatten(&v)
		return v, nil
	case TagArrayBufferObjectV2:
		buf, err := d.r.ReadRaw(int(data))
		if err != nil {
			return Value{}, err
		}
		v := newArrayBufferValue(buf)
		d.flatten(&v)
		return v, nil
	case TagDOMBlob:
		return d.readBlob(data)
	case TagDOMFile, TagDOMFileWithoutLastModifiedDate:
		return d.readFile(Tag(tag), data)
	case TagDOMCryptoKey:
		return d.readCryptoKey()
	case TagEndOfKeys:
		return Value{}, errEndOfKeys
	default:
		return Value{}, &UnsupportedTagError{Tag: Tag(tag)}
	}
}

// flatten appends a copy of v to the flattened-object table. Composite
// readers call this (or their own equivalent append) before decoding
// children, so a back-reference encountered while decoding those children
// resolves to the in-progress object.
func (d *decoder) flatten(v *Value) {
	stored := *v
	d.table = append(d.table, &stored)
}

// pairToDouble reinterprets a (tag, data) pair below FloatMax as a raw IEEE
// double: pack tag:data big-endian into 8 bytes and unpack as a BE double.
func pairToDouble(tag, data uint32) float64 {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], tag)
	binary.BigEndian.PutUint32(buf[4:8], data)
	bits := binary.BigEndian.Uint64(buf[:])
	return math.Float64frombits(bits)
}

func (d *decoder) readDouble() (float64, error) {
	bits, err := d.r.Uint64(binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// readString decodes a STRING/STRING_OBJECT pair's data: the high bit of
// data selects Latin-1 (set) vs UTF-16-LE (clear); the low 31 bits are the
// codepoint count.
func (d *decoder) readString(data uint32) (string, error) {
	length := data & 0x7fffffff
	isLatin1 := data&0x80000000 != 0

	if isLatin1 {
		raw, err := d.r.ReadRaw(int(length))
		if err != nil {
			return "", err
		}
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	}

	raw, err := d.r.ReadRaw(int(length) * 2)
	if err != nil {
		return "", err
	}
	utf16Reader := transform.NewReader(newByteReader(raw), unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	decoded, err := io.ReadAll(utf16Reader)
	if err != nil {
		return "", fmt.Errorf("decoding UTF-16 string: %w", err)
	}
	return string(decoded), nil
}

// readStringPair reads a full (tag, data) pair expected to be a STRING and
// decodes it.
func (d *decoder) readStringPair() (string, error) {
	tag, data, err := d.nextPair()
	if err != nil {
		return "", err
	}
	if Tag(tag) != TagString && Tag(tag) != TagStringObject {
		return "", fmt.Errorf("expected a string pair, got tag 0x%08x", tag)
	}
	return d.readString(data)
}

// readBigInt assembles a BigInt's little-endian magnitude bytes into a
// math/big.Int, applying the sign carried in the high bit of data.
func (d *decoder) readBigInt(data uint32) (*big.Int, error) {
	length := int(8 * (data & 0x7fffffff))
	negative := data&0x80000000 != 0

	raw, err := d.r.ReadRaw(length)
	if err != nil {
		return nil, err
	}

	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}
	bi := new(big.Int).SetBytes(be)
	if negative {
		bi.Neg(bi)
	}
	return bi, nil
}

// regexpFlags renders SpiderMonkey's RegExpFlags bitfield into flag
// letters. Note that global and ignorecase occupy bit positions swapped
// relative to most other engines' serializations.
func regexpFlags(bits uint32) string {
	const (
		flagIgnoreCase  = 1 << 0
		flagGlobal      = 1 << 1
		flagMultiline   = 1 << 2
		flagSticky      = 1 << 3
		flagUnicode     = 1 << 4
		flagDotAll      = 1 << 5
		flagHasIndices  = 1 << 6
		flagUnicodeSets = 1 << 7
	)
	var out []byte
	add := func(mask uint32, letter byte) {
		if bits&mask != 0 {
			out = append(out, letter)
		}
	}
	add(flagIgnoreCase, 'i')
	add(flagGlobal, 'g')
	add(flagMultiline, 'm')
	add(flagSticky, 'y')
	add(flagUnicode, 'u')
	add(flagDotAll, 's')
	add(flagHasIndices, 'd')
	add(flagUnicodeSets, 'v')
	return string(out)
}

func newArrayBufferValue(buf []byte) Value {
	return Value{Kind: KindArrayBuffer, Bytes: buf}
}
