package mozclone

import (
	"encoding/binary"
	"fmt"
	"math"
)

// readTypedArray decodes a TYPED_ARRAY_OBJECT or TYPED_ARRAY_OBJECT_V2. The
// two tags differ only in which of (scalar type, element count) is carried
// in the pair's data field versus the following u64, and in whether a
// start-offset u64 follows the backing-buffer pair (V1 only).
func (d *decoder) readTypedArray(tag Tag, data uint32) (Value, error) {
	var scalarType ScalarType
	var elementCount uint64
	var hasStartOffset bool

	switch tag {
	case TagTypedArrayObject:
		scalarType = ScalarType(data)
		n, err := d.r.Uint64(binary.LittleEndian)
		if err != nil {
			return Value{}, fmt.Errorf("reading typed array element count: %w", err)
		}
		elementCount = n
		hasStartOffset = true
	case TagTypedArrayObjectV2:
		elementCount = uint64(data)
		n, err := d.r.Uint64(binary.LittleEndian)
		if err != nil {
			return Value{}, fmt.Errorf("reading typed array scalar type: %w", err)
		}
		scalarType = ScalarType(n)
	default:
		return Value{}, fmt.Errorf("readTypedArray called with unexpected tag 0x%08x", uint32(tag))
	}

	// A typed array needs a placeholder slot reserved before its backing
	// buffer is decoded, since the buffer decode may itself append entries
	// to the table that must sit after this one.
	placeholder := Value{Kind: KindUndefined}
	d.flatten(&placeholder)
	tableIndex := len(d.table) - 1

	backing, err := d.readTypedArrayBacking()
	if err != nil {
		return Value{}, err
	}

	var startOffset uint64
	if hasStartOffset {
		startOffset, err = d.r.Uint64(binary.LittleEndian)
		if err != nil {
			return Value{}, fmt.Errorf("reading typed array start offset: %w", err)
		}
	}

	ta, err := materializeTypedArray(scalarType, backing, startOffset, elementCount)
	if err != nil {
		return Value{}, err
	}

	result := Value{Kind: KindTypedArray, TypedArray: ta}
	*d.table[tableIndex] = result
	return result, nil
}

// readTypedArrayBacking reads the pair that backs a typed array: a fresh
// ArrayBuffer, its V2 variant, or a back-reference to an already-decoded
// one.
func (d *decoder) readTypedArrayBacking() ([]byte, error) {
	backingTag, backingData, err := d.nextPair()
	if err != nil {
		return nil, fmt.Errorf("reading typed array backing buffer: %w", err)
	}

	switch Tag(backingTag) {
	case TagBackReferenceObject:
		idx := int(backingData)
		if idx < 0 || idx >= len(d.table) {
			return nil, fmt.Errorf("%w: index %d", ErrInvalidBackref, idx)
		}
		if d.table[idx].Kind != KindArrayBuffer {
			return nil, ErrTypedArrayBackingMismatch
		}
		return d.table[idx].Bytes, nil
	case TagArrayBufferObject, TagArrayBufferObjectV2:
		v, err := d.readValue(backingTag, backingData)
		if err != nil {
			return nil, err
		}
		if v.Kind != KindArrayBuffer {
			return nil, ErrTypedArrayBackingMismatch
		}
		return v.Bytes, nil
	default:
		return nil, ErrTypedArrayBackingMismatch
	}
}

// materializeTypedArray reinterprets count elements of backing[offset:] as
// scalarType, little-endian.
func materializeTypedArray(scalarType ScalarType, backing []byte, offset uint64, count uint64) (TypedArray, error) {
	if offset > uint64(len(backing)) {
		return TypedArray{}, fmt.Errorf("typed array start offset %d exceeds backing buffer length %d", offset, len(backing))
	}
	data := backing[offset:]

	size, ok := elementSize(scalarType)
	if !ok {
		return TypedArray{}, fmt.Errorf("%w: scalar type %d is not materializable", ErrUnsupportedTag, scalarType)
	}
	if uint64(len(data)) < count*uint64(size) {
		return TypedArray{}, fmt.Errorf("typed array backing buffer too short: have %d bytes, need %d", len(data), count*uint64(size))
	}

	ta := TypedArray{Type: scalarType}
	switch scalarType {
	case ScalarUint8Clamped:
		ta.Uint8 = append([]byte(nil), data[:count]...)
	case ScalarInt8:
		out := make([]int8, count)
		for i := range out {
			out[i] = int8(data[i])
		}
		ta.Int8 = out
	case ScalarUint8:
		ta.Uint8 = append([]byte(nil), data[:count]...)
	case ScalarInt16:
		out := make([]int16, count)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		ta.Int16 = out
	case ScalarUint16:
		out := make([]uint16, count)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(data[i*2:])
		}
		ta.Uint16 = out
	case ScalarInt32:
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		ta.Int32 = out
	case ScalarUint32:
		out := make([]uint32, count)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		ta.Uint32 = out
	case ScalarFloat32:
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		ta.Float32 = out
	case ScalarFloat64:
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		ta.Float64 = out
	case ScalarBigInt64:
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		ta.Int64 = out
	case ScalarBigUint64:
		out := make([]uint64, count)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		ta.Uint64 = out
	}
	return ta, nil
}
