package mozjson

import (
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/dfirkit/mozreader/mozclone"
	"github.com/dfirkit/mozreader/mozidbkey"
	"github.com/stretchr/testify/require"
)

func TestIDBKeyScalarKinds(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3.5, IDBKey(mozidbkey.Value{Kind: mozidbkey.KindFloat, Float: 3.5}))
	require.Equal(t, "hello", IDBKey(mozidbkey.Value{Kind: mozidbkey.KindString, String: "hello"}))

	got := IDBKey(mozidbkey.Value{Kind: mozidbkey.KindBinary, Binary: []byte{1, 2, 3}})
	encoded, ok := got.(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, decoded)
}

func TestIDBKeyArray(t *testing.T) {
	t.Parallel()

	v := mozidbkey.Value{Kind: mozidbkey.KindArray, Array: []mozidbkey.Value{
		{Kind: mozidbkey.KindFloat, Float: 1},
		{Kind: mozidbkey.KindString, String: "x"},
	}}
	got := IDBKey(v)
	out, ok := got.([]any)
	require.True(t, ok)
	require.Equal(t, []any{1.0, "x"}, out)
}

func TestCloneValueScalars(t *testing.T) {
	t.Parallel()

	doc := &mozclone.Document{}
	require.Equal(t, int32(42), CloneValue(doc, &mozclone.Value{Kind: mozclone.KindInt32, Int32: 42}))
	require.Equal(t, "str", CloneValue(doc, &mozclone.Value{Kind: mozclone.KindString, String: "str"}))
	require.Nil(t, CloneValue(doc, &mozclone.Value{Kind: mozclone.KindNull}))
	require.Equal(t, true, CloneValue(doc, &mozclone.Value{Kind: mozclone.KindBoolean, Bool: true}))

	bi := big.NewInt(-12345)
	require.Equal(t, "-12345", CloneValue(doc, &mozclone.Value{Kind: mozclone.KindBigInt, BigInt: bi}))
}

func TestCloneValueObjectAndArray(t *testing.T) {
	t.Parallel()

	doc := &mozclone.Document{
		Root: mozclone.Value{
			Kind: mozclone.KindObject,
			Object: []mozclone.KeyValue{
				{
					Key:   mozclone.Value{Kind: mozclone.KindString, String: "nums"},
					Value: mozclone.Value{Kind: mozclone.KindArray, Array: []mozclone.Value{{Kind: mozclone.KindInt32, Int32: 1}, {Kind: mozclone.KindInt32, Int32: 2}}},
				},
			},
		},
	}

	got := CloneValue(doc, &doc.Root)
	out, ok := got.(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{int32(1), int32(2)}, out["nums"])
}

func TestCloneValueFile(t *testing.T) {
	t.Parallel()

	doc := &mozclone.Document{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v := mozclone.Value{
		Kind: mozclone.KindFile,
		File: mozclone.File{
			Blob:            mozclone.Blob{Size: 10, MIMEType: "text/plain", ExternalRef: 3},
			Name:            "a.txt",
			LastModified:    now,
			HasLastModified: true,
		},
	}

	got := CloneValue(doc, &v)
	out, ok := got.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a.txt", out["name"])
	require.Equal(t, "text/plain", out["mimeType"])
	require.Equal(t, now.Format(timeLayout), out["lastModified"])
}
