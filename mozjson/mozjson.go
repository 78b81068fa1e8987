// Package mozjson renders decoded structured-clone values and IndexedDB
// keys as plain JSON-able Go values (map[string]any, []any, and scalars),
// so both the CLI and the osquery table plugins can emit the same shape
// without each re-implementing the Kind switch.
package mozjson

import (
	"encoding/base64"
	"fmt"

	"github.com/dfirkit/mozreader/mozclone"
	"github.com/dfirkit/mozreader/mozidbkey"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// IDBKey renders a decoded IndexedDB key as a plain JSON-able value.
func IDBKey(v mozidbkey.Value) any {
	switch v.Kind {
	case mozidbkey.KindFloat:
		return v.Float
	case mozidbkey.KindDate:
		return v.Date.UTC().Format(timeLayout)
	case mozidbkey.KindString:
		return v.String
	case mozidbkey.KindBinary:
		return base64.StdEncoding.EncodeToString(v.Binary)
	case mozidbkey.KindArray:
		out := make([]any, len(v.Array))
		for i, elem := range v.Array {
			out[i] = IDBKey(elem)
		}
		return out
	default:
		return nil
	}
}

// CloneValue renders a decoded structured-clone value as a plain JSON-able
// value, resolving back-references through doc.
func CloneValue(doc *mozclone.Document, v *mozclone.Value) any {
	resolved, err := doc.Deref(*v)
	if err != nil {
		return fmt.Sprintf("<unresolvable back-reference: %s>", err)
	}

	switch resolved.Kind {
	case mozclone.KindNull, mozclone.KindUndefined:
		return nil
	case mozclone.KindBoolean:
		return resolved.Bool
	case mozclone.KindInt32:
		return resolved.Int32
	case mozclone.KindDouble:
		return resolved.Double
	case mozclone.KindString:
		return resolved.String
	case mozclone.KindDate:
		return resolved.Date.UTC().Format(timeLayout)
	case mozclone.KindRegexp:
		return "/" + resolved.Regexp.Source + "/" + resolved.Regexp.Flags
	case mozclone.KindBigInt:
		if resolved.BigInt != nil {
			return resolved.BigInt.String()
		}
		return nil
	case mozclone.KindArray:
		out := make([]any, len(resolved.Array))
		for i := range resolved.Array {
			out[i] = CloneValue(doc, &resolved.Array[i])
		}
		return out
	case mozclone.KindObject, mozclone.KindMap:
		pairs := resolved.Object
		if resolved.Kind == mozclone.KindMap {
			pairs = resolved.Map
		}
		out := make(map[string]any, len(pairs))
		for _, kv := range pairs {
			keyJSON := CloneValue(doc, &kv.Key)
			key, ok := keyJSON.(string)
			if !ok {
				key = fmt.Sprintf("%v", keyJSON)
			}
			out[key] = CloneValue(doc, &kv.Value)
		}
		return out
	case mozclone.KindSet:
		out := make([]any, len(resolved.Set))
		for i := range resolved.Set {
			out[i] = CloneValue(doc, &resolved.Set[i])
		}
		return out
	case mozclone.KindArrayBuffer:
		return base64.StdEncoding.EncodeToString(resolved.Bytes)
	case mozclone.KindTypedArray:
		return typedArray(resolved.TypedArray)
	case mozclone.KindBlob:
		return map[string]any{
			"mimeType":    resolved.Blob.MIMEType,
			"size":        resolved.Blob.Size,
			"externalRef": resolved.Blob.ExternalRef,
		}
	case mozclone.KindFile:
		out := map[string]any{
			"name":        resolved.File.Name,
			"mimeType":    resolved.File.MIMEType,
			"size":        resolved.File.Size,
			"externalRef": resolved.File.ExternalRef,
		}
		if resolved.File.HasLastModified {
			out["lastModified"] = resolved.File.LastModified.UTC().Format(timeLayout)
		}
		return out
	case mozclone.KindCryptoKey:
		return map[string]any{
			"algorithmName": resolved.CryptoKey.AlgorithmName,
			"algorithm":     resolved.CryptoKey.Algorithm.Kind,
		}
	default:
		return nil
	}
}

func typedArray(ta mozclone.TypedArray) any {
	switch {
	case ta.Int8 != nil:
		return ta.Int8
	case ta.Uint8 != nil:
		return ta.Uint8
	case ta.Int16 != nil:
		return ta.Int16
	case ta.Uint16 != nil:
		return ta.Uint16
	case ta.Int32 != nil:
		return ta.Int32
	case ta.Uint32 != nil:
		return ta.Uint32
	case ta.Float32 != nil:
		return ta.Float32
	case ta.Float64 != nil:
		return ta.Float64
	case ta.Int64 != nil:
		return ta.Int64
	case ta.Uint64 != nil:
		return ta.Uint64
	default:
		return nil
	}
}
