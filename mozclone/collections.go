package mozclone

import (
	"errors"
	"fmt"

	"github.com/dfirkit/mozreader/internal/binreader"
)

// errEndOfKeys is the internal control signal produced by an END_OF_KEYS
// pair, consumed by the collection readers below and never returned to
// Decode's caller.
var errEndOfKeys = errors.New("end of keys")

// readArray decodes an ARRAY_OBJECT. declaredLength is the array's nominal
// length; indices below it that no key wrote are filled with Undefined,
// matching a sparse JS array materialized densely. A key at or beyond
// declaredLength is an ErrShortRead-wrapped decode error.
func (d *decoder) readArray(declaredLength uint32) (Value, error) {
	v := Value{Kind: KindArray}
	d.flatten(&v)
	tableIndex := len(d.table) - 1

	sparse := make(map[uint32]Value)
	var maxIndex uint32
	haveAny := false

	for {
		keyTag, keyData, err := d.nextPair()
		if err != nil {
			return Value{}, fmt.Errorf("reading array index: %w", err)
		}
		if Tag(keyTag) == TagEndOfKeys {
			break
		}
		if Tag(keyTag) != TagInt32 {
			return Value{}, fmt.Errorf("expected an array index (INT32), got tag 0x%08x", keyTag)
		}
		index := keyData

		elem, err := d.read()
		if err != nil {
			return Value{}, fmt.Errorf("reading array element %d: %w", index, err)
		}
		sparse[index] = elem
		if !haveAny || index > maxIndex {
			maxIndex = index
			haveAny = true
		}
	}

	if haveAny && maxIndex >= declaredLength {
		return Value{}, fmt.Errorf("%w: array index %d is beyond declared length %d", binreader.ErrShortRead, maxIndex, declaredLength)
	}
	dense := make([]Value, declaredLength)
	for i := range dense {
		if elem, ok := sparse[uint32(i)]; ok {
			dense[i] = elem
		} else {
			dense[i] = Value{Kind: KindUndefined}
		}
	}
	v.Array = dense
	*d.table[tableIndex] = v
	return v, nil
}

// readObject decodes an OBJECT_OBJECT: string keys in insertion order, each
// followed by its value, terminated by END_OF_KEYS.
func (d *decoder) readObject() (Value, error) {
	v := Value{Kind: KindObject}
	d.flatten(&v)
	tableIndex := len(d.table) - 1

	var entries []KeyValue
	for {
		keyTag, keyData, err := d.nextPair()
		if err != nil {
			return Value{}, fmt.Errorf("reading object key: %w", err)
		}
		if Tag(keyTag) == TagEndOfKeys {
			break
		}
		if Tag(keyTag) != TagString && Tag(keyTag) != TagStringObject {
			return Value{}, fmt.Errorf("expected a string object key, got tag 0x%08x", keyTag)
		}
		key, err := d.readString(keyData)
		if err != nil {
			return Value{}, fmt.Errorf("decoding object key: %w", err)
		}

		val, err := d.read()
		if err != nil {
			return Value{}, fmt.Errorf("reading value for object key %q: %w", key, err)
		}
		entries = append(entries, KeyValue{Key: Value{Kind: KindString, String: key}, Value: val})
	}

	v.Object = entries
	*d.table[tableIndex] = v
	return v, nil
}

// readMap decodes a MAP_OBJECT: key/value pairs, either of which may be any
// value (not just strings), terminated by END_OF_KEYS on the key slot.
func (d *decoder) readMap() (Value, error) {
	v := Value{Kind: KindMap}
	d.flatten(&v)
	tableIndex := len(d.table) - 1

	var entries []KeyValue
	for {
		keyTag, keyData, err := d.nextPair()
		if err != nil {
			return Value{}, fmt.Errorf("reading map key: %w", err)
		}
		if Tag(keyTag) == TagEndOfKeys {
			break
		}
		key, err := d.readValue(keyTag, keyData)
		if err != nil {
			return Value{}, fmt.Errorf("decoding map key: %w", err)
		}

		val, err := d.read()
		if err != nil {
			return Value{}, fmt.Errorf("reading map value: %w", err)
		}
		entries = append(entries, KeyValue{Key: key, Value: val})
	}

	v.Map = entries
	*d.table[tableIndex] = v
	return v, nil
}

// readSet decodes a SET_OBJECT: values terminated by END_OF_KEYS.
func (d *decoder) readSet() (Value, error) {
	v := Value{Kind: KindSet}
	d.flatten(&v)
	tableIndex := len(d.table) - 1

	var elements []Value
	for {
		elem, err := d.read()
		if err != nil {
			if errors.Is(err, errEndOfKeys) {
				break
			}
			return Value{}, fmt.Errorf("reading set element: %w", err)
		}
		elements = append(elements, elem)
	}

	v.Set = elements
	*d.table[tableIndex] = v
	return v, nil
}
