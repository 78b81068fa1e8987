package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordWriterSnakeCasesFieldNames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.jsonl")
	writer, closeFn, err := newRecordWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Write(struct {
		URL       string `json:"url"`
		VisitTime string `json:"visitTime"`
	}{URL: "https://example.com", VisitTime: "2024-01-02T15:04:05.000Z"}))
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "https://example.com", fields["url"])
	require.Equal(t, "2024-01-02T15:04:05.000Z", fields["visit_time"])
}
