package mozclone

// Tag is a structured-clone pair's type tag (js/src/vm/StructuredClone.cpp's
// JSStructuredCloneWriter scheme, continued for DOM-specific types by
// dom/base/StructuredCloneTags.h).
type Tag uint32

const (
	// FloatMax is the boundary below which a pair's tag is not a tag at all:
	// (tag, data) is reinterpreted as the two halves of a raw double.
	FloatMax Tag = 0xfff00000
	// Header opens every structured-clone stream; its data is an opaque
	// scope value.
	Header Tag = 0xfff10000
)

const tagBase Tag = 0xffff0000

const (
	TagNull Tag = tagBase + iota
	TagUndefined
	TagBoolean
	TagInt32
	TagString
	TagDateObject
	TagRegexpObject
	TagArrayObject
	TagObjectObject
	TagArrayBufferObjectV2
	TagBooleanObject
	TagStringObject
	TagNumberObject
	TagBackReferenceObject
	tagDoNotUse1
	tagDoNotUse2
	TagTypedArrayObjectV2
	TagMapObject
	TagSetObject
	TagEndOfKeys
	tagDoNotUse3
	tagDataViewObjectV2
	tagSavedFrameObject
	tagJSPrincipals
	tagNullJSPrincipals
	tagReconstructedSavedFramePrincipalsIsSystem
	tagReconstructedSavedFramePrincipalsIsNotSystem
	tagSharedArrayBufferObject
	tagSharedWasmMemoryObject
	TagBigInt
	TagBigIntObject
	TagArrayBufferObject
	TagTypedArrayObject
	tagDataViewObject
	TagErrorObject
	TagResizableArrayBufferObject
	TagGrowableSharedArrayBufferObject
)

// domBase is JS_SCTAG_USER_MIN (js/public/StructuredClone.h): the start of
// the DOM-specific tag range assigned by dom/base/StructuredCloneTags.h.
const domBase Tag = 0xffff8000

const (
	TagDOMBlob Tag = domBase + 1 + iota
	TagDOMFileWithoutLastModifiedDate
	tagDOMFileList
	tagDOMMutableFile
	TagDOMFile
	tagDOMWasmModule
	tagDOMImageData
	tagDOMPoint
	tagDOMPointReadOnly
	TagDOMCryptoKey
)

// ScalarType is a typed array's element type (js/public/ScalarType.h).
type ScalarType uint32

const (
	ScalarInt8 ScalarType = iota
	ScalarUint8
	ScalarInt16
	ScalarUint16
	ScalarInt32
	ScalarUint32
	ScalarFloat32
	ScalarFloat64
	ScalarUint8Clamped
	ScalarBigInt64
	ScalarBigUint64
	ScalarMaxTypedArrayViewType
	ScalarInt64
	ScalarSimd128
)

// elementSize returns the byte width of one element of t, or ok=false for a
// scalar type with no fixed materializable width (Int64, Simd128,
// MaxTypedArrayViewType).
func elementSize(t ScalarType) (size int, ok bool) {
	switch t {
	case ScalarInt8, ScalarUint8, ScalarUint8Clamped:
		return 1, true
	case ScalarInt16, ScalarUint16:
		return 2, true
	case ScalarInt32, ScalarUint32, ScalarFloat32:
		return 4, true
	case ScalarFloat64, ScalarBigInt64, ScalarBigUint64:
		return 8, true
	default:
		return 0, false
	}
}
