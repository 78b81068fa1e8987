// Package storagemeta decodes Firefox's per-origin `.metadata-v2` file,
// which records the quota-manager directory metadata dom/quota/ActorsParent.cpp
// writes for every `storage/default/<origin>` folder.
package storagemeta

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/dfirkit/mozreader/internal/binreader"
)

// Metadata is the decoded contents of a `.metadata-v2` file.
type Metadata struct {
	Timestamp time.Time
	Persisted bool
	Suffix    string
	Group     string
	Origin    string
	IsApp     bool
}

// Read decodes the `.metadata-v2` file at path.
func Read(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	r := binreader.New(f)

	us, err := r.Uint64(binary.BigEndian)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading timestamp: %w", err)
	}
	timestamp := unixMicros(us)

	persistedByte, err := r.ReadRaw(1)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading persisted flag: %w", err)
	}

	if _, err := r.ReadRaw(8); err != nil {
		return Metadata{}, fmt.Errorf("reading reserved bytes: %w", err)
	}

	suffix, err := readLengthPrefixedString(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading suffix: %w", err)
	}
	group, err := readLengthPrefixedString(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading group: %w", err)
	}
	origin, err := readLengthPrefixedString(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading origin: %w", err)
	}

	isAppByte, err := r.ReadRaw(1)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading is_app flag: %w", err)
	}

	return Metadata{
		Timestamp: timestamp,
		Persisted: persistedByte[0] != 0,
		Suffix:    suffix,
		Group:     group,
		Origin:    origin,
		IsApp:     isAppByte[0] != 0,
	}, nil
}

// readLengthPrefixedString reads a 32-bit big-endian length followed by that
// many UTF-8 bytes, matching nsBinaryStream.cpp's ReadCString.
func readLengthPrefixedString(r *binreader.Reader) (string, error) {
	length, err := r.Uint32(binary.BigEndian)
	if err != nil {
		return "", err
	}
	return r.UTF8(int(length))
}

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// unixMicros converts a count of microseconds since the Unix epoch to a
// UTC time.Time.
func unixMicros(us uint64) time.Time {
	return unixEpoch.Add(time.Duration(us) * time.Microsecond)
}
