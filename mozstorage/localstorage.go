// Package mozstorage reads a profile's local storage and session storage.
package mozstorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dfirkit/mozreader/internal/sqliteutil"
	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/dfirkit/mozreader/storagemeta"
	"github.com/golang/snappy"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ConversionType is the string encoding LSValue.h chose for a stored value.
type ConversionType int

const (
	ConversionUTF16 ConversionType = 0
	ConversionUTF8  ConversionType = 1
)

// CompressionType is the compression LSValue.h applied before storing a
// value.
type CompressionType int

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
)

// LocalStorageRecord is one row of a per-origin local storage database.
type LocalStorageRecord struct {
	StorageKey      string
	ScriptKey       string
	Value           string
	DatabasePath    string
	RowID           int64
	ValueRaw        []byte
	ConversionType  ConversionType
	CompressionType CompressionType
}

type localStorageHost struct {
	dbPath   string
	metadata storagemeta.Metadata
}

// LocalStore gives access to every origin's localStorage database beneath
// a profile's `storage/default` folder.
type LocalStore struct {
	hosts map[string]localStorageHost
}

// OpenLocalStore discovers every `<origin>/ls/data.sqlite` beneath
// storageDefaultPath (a profile's `storage/default` directory).
func OpenLocalStore(storageDefaultPath string) (*LocalStore, error) {
	entries, err := filepath.Glob(filepath.Join(storageDefaultPath, "*"))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", storageDefaultPath, err)
	}

	ls := &LocalStore{hosts: make(map[string]localStorageHost)}
	for _, originDir := range entries {
		dbPath := filepath.Join(originDir, "ls", "data.sqlite")
		if !fileExists(dbPath) {
			continue
		}

		metadataPath := filepath.Join(originDir, ".metadata-v2")
		if !fileExists(metadataPath) {
			return nil, fmt.Errorf("%s is missing .metadata-v2", originDir)
		}
		meta, err := storagemeta.Read(metadataPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", metadataPath, err)
		}

		ls.hosts[meta.Origin] = localStorageHost{dbPath: dbPath, metadata: meta}
	}
	return ls, nil
}

// StorageKeys returns every origin this store found a localStorage
// database for.
func (ls *LocalStore) StorageKeys() []string {
	keys := make([]string, 0, len(ls.hosts))
	for k := range ls.hosts {
		keys = append(keys, k)
	}
	return keys
}

// MetadataFor returns the .metadata-v2 contents for storageKey, if known.
func (ls *LocalStore) MetadataFor(storageKey string) (storagemeta.Metadata, bool) {
	h, ok := ls.hosts[storageKey]
	return h.metadata, ok
}

const localStorageQuery = `
	SELECT rowid, "key", "utf16_length", "conversion_type", "compression_type", "value"
	FROM "data";
`

// IterRecords walks every localStorage record whose origin matches
// storageKey and whose script key matches scriptKey (either Search may be
// nil to match everything). opts.SkipCorrupt skips records whose value
// fails to decode instead of terminating iteration with the decode error;
// opts.RaiseOnNoResult reports ErrNotFound if nothing matched.
func (ls *LocalStore) IterRecords(ctx context.Context, storageKey, scriptKey mozsearch.Search, opts mozsearch.Options, fn func(LocalStorageRecord) error) error {
	matched := false
	for origin, host := range ls.hosts {
		if !mozsearch.Hit(storageKey, origin) {
			continue
		}
		hostMatched, err := ls.iterHost(ctx, origin, host, scriptKey, opts, fn)
		if err != nil {
			return err
		}
		matched = matched || hostMatched
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no localStorage records matched", ErrNotFound)
	}
	return nil
}

func (ls *LocalStore) iterHost(ctx context.Context, storageKey string, host localStorageHost, scriptKey mozsearch.Search, opts mozsearch.Options, fn func(LocalStorageRecord) error) (bool, error) {
	conn, closeFn, err := sqliteutil.Open(host.dbPath)
	if err != nil {
		return false, fmt.Errorf("opening localStorage db for %s: %w", storageKey, err)
	}
	defer closeFn()

	rows, err := conn.QueryContext(ctx, localStorageQuery)
	if err != nil {
		return false, fmt.Errorf("querying localStorage db for %s: %w", storageKey, err)
	}
	defer rows.Close()

	matched := false
	for rows.Next() {
		var rowID int64
		var key string
		var utf16Length int64
		var convType, comprType int
		var value []byte
		if err := rows.Scan(&rowID, &key, &utf16Length, &convType, &comprType, &value); err != nil {
			return matched, fmt.Errorf("scanning localStorage row: %w", err)
		}
		if !mozsearch.Hit(scriptKey, key) {
			continue
		}

		decoded, err := decodeLocalStorageValue(value, ConversionType(convType), CompressionType(comprType))
		if err != nil {
			if opts.SkipCorrupt {
				continue
			}
			return matched, fmt.Errorf("decoding localStorage value for %s/%s: %w", storageKey, key, err)
		}

		rec := LocalStorageRecord{
			StorageKey:      storageKey,
			ScriptKey:       key,
			Value:           decoded,
			DatabasePath:    host.dbPath,
			RowID:           rowID,
			ValueRaw:        value,
			ConversionType:  ConversionType(convType),
			CompressionType: CompressionType(comprType),
		}
		matched = true
		if err := fn(rec); err != nil {
			return matched, err
		}
	}
	return matched, rows.Err()
}

func decodeLocalStorageValue(raw []byte, conv ConversionType, compr CompressionType) (string, error) {
	var err error
	switch compr {
	case CompressionSnappy:
		raw, err = snappy.Decode(nil, raw)
		if err != nil {
			return "", fmt.Errorf("snappy-decoding value: %w", err)
		}
	case CompressionNone:
	default:
		return "", fmt.Errorf("unexpected compression type %d", compr)
	}

	if len(raw) == 0 {
		return "", nil
	}

	switch conv {
	case ConversionUTF16:
		return decodeUTF16BE(raw)
	case ConversionUTF8:
		return string(raw), nil
	default:
		return "", fmt.Errorf("unexpected conversion type %d", conv)
	}
}

func decodeUTF16BE(raw []byte) (string, error) {
	if len(raw)%2 != 0 {
		return "", fmt.Errorf("UTF-16BE value has odd byte length %d", len(raw))
	}
	utf16Reader := transform.NewReader(bytes.NewReader(raw), unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
	decoded, err := io.ReadAll(utf16Reader)
	if err != nil {
		return "", fmt.Errorf("decoding UTF-16BE value: %w", err)
	}
	return string(decoded), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
