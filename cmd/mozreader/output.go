package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/serenize/snaker"
)

// recordWriter emits one JSON object per line to its destination, with
// every top-level field name rewritten to snake_case so field names read
// the same regardless of which artifact type produced them.
type recordWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func newRecordWriter(path string) (*recordWriter, func() error, error) {
	var dst io.Writer = os.Stdout
	closeFn := func() error { return nil }

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output file: %w", err)
		}
		dst = f
		closeFn = f.Close
	}

	bw := bufio.NewWriter(dst)
	rw := &recordWriter{w: bw, enc: json.NewEncoder(bw)}
	return rw, func() error {
		if err := bw.Flush(); err != nil {
			return err
		}
		return closeFn()
	}, nil
}

// Write marshals record through JSON once to recover its field names, then
// re-keys the top level to snake_case before emitting it, the same
// normalization ee/katc/case.go applies to ATC table rows.
func (rw *recordWriter) Write(record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshaling record fields: %w", err)
	}

	snakeFields := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		snakeFields[snaker.CamelToSnake(k)] = v
	}

	return rw.enc.Encode(snakeFields)
}
