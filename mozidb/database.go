// Package mozidb reads a profile's IndexedDB storage: one sqlite database
// per origin database, plus the sibling `.files` folder holding externally
// stored (out-of-line) structured-clone payloads.
package mozidb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dfirkit/mozreader/internal/sqliteutil"
	"github.com/dfirkit/mozreader/mozclone"
	"github.com/dfirkit/mozreader/mozidbkey"
	"github.com/golang/snappy"
)

// ObjectStoreMetadata describes one object store within a database, as
// recorded in that database's own `object_store` table.
type ObjectStoreMetadata struct {
	ID            int64
	AutoIncrement bool
	Name          string
	KeyPath       string
}

// Record is one decoded row from an object store: its key (per the
// IndexedDB key encoding), its structured-clone value, and the file
// identifiers available for any Blob/File references the value contains.
type Record struct {
	ObjectStore ObjectStoreMetadata
	Key         mozidbkey.Value
	Value       *mozclone.Document
	FileIDs     []string
	ExternalRef bool
}

// Database is one `<name>.sqlite` file within an origin's `idb` folder,
// together with its sibling `<name>.files` directory.
type Database struct {
	Path            string
	Name            string
	Origin          string
	Version         int64
	LastVacuumTime  time.Time
	LastAnalyzeTime time.Time
	LastVacuumSize  int64

	objectStores []ObjectStoreMetadata
	filesDir     string

	db      *sql.DB
	closeFn func() error
}

const metadataQuery = `SELECT "name", "origin", "version", "last_vacuum_time", "last_analyze_time", "last_vacuum_size" FROM database;`

const objectStoreQuery = `SELECT id, auto_increment, name, key_path FROM object_store;`

const recordsByObjectStoreQuery = `
	SELECT "object_data"."key", "object_data"."data", "object_data"."file_ids"
	FROM "object_data"
	WHERE "object_data"."object_store_id" = ?;
`

// OpenDatabase opens one IndexedDB sqlite database at path, reading its
// metadata and object store list eagerly.
func OpenDatabase(path string) (*Database, error) {
	conn, closeFn, err := sqliteutil.Open(path)
	if err != nil {
		return nil, err
	}

	d := &Database{
		Path:     path,
		filesDir: strings.TrimSuffix(path, filepath.Ext(path)) + ".files",
		db:       conn,
		closeFn:  closeFn,
	}

	var vacuumUS, analyzeUS int64
	row := conn.QueryRow(metadataQuery)
	if err := row.Scan(&d.Name, &d.Origin, &d.Version, &vacuumUS, &analyzeUS, &d.LastVacuumSize); err != nil {
		closeFn()
		return nil, fmt.Errorf("reading database metadata for %s: %w", path, err)
	}
	d.LastVacuumTime = unixMicros(vacuumUS)
	d.LastAnalyzeTime = unixMicros(analyzeUS)

	rows, err := conn.Query(objectStoreQuery)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("reading object stores for %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta ObjectStoreMetadata
		var autoIncrement int
		if err := rows.Scan(&meta.ID, &autoIncrement, &meta.Name, &meta.KeyPath); err != nil {
			closeFn()
			return nil, fmt.Errorf("scanning object store row for %s: %w", path, err)
		}
		meta.AutoIncrement = autoIncrement != 0
		d.objectStores = append(d.objectStores, meta)
	}
	if err := rows.Err(); err != nil {
		closeFn()
		return nil, err
	}

	return d, nil
}

// Close releases the database's sqlite handle and its temporary copy.
func (d *Database) Close() error {
	return d.closeFn()
}

// ObjectStores returns the database's object store metadata, in the order
// the `object_store` table returned it.
func (d *Database) ObjectStores() []ObjectStoreMetadata {
	return append([]ObjectStoreMetadata(nil), d.objectStores...)
}

// ObjectStoreByName finds an object store by name.
func (d *Database) ObjectStoreByName(name string) (ObjectStoreMetadata, bool) {
	for _, s := range d.objectStores {
		if s.Name == name {
			return s, true
		}
	}
	return ObjectStoreMetadata{}, false
}

// IterRecords decodes every record in the named object store, calling fn
// for each. Iteration stops (returning fn's error) the first time fn
// returns a non-nil error.
func (d *Database) IterRecords(ctx context.Context, store ObjectStoreMetadata, fn func(Record) error) error {
	rows, err := d.db.QueryContext(ctx, recordsByObjectStoreQuery, store.ID)
	if err != nil {
		return fmt.Errorf("querying object store %q: %w", store.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var keyRaw []byte
		var data any
		var fileIDsRaw sql.NullString
		if err := rows.Scan(&keyRaw, &data, &fileIDsRaw); err != nil {
			return fmt.Errorf("scanning object_data row: %w", err)
		}

		key, err := mozidbkey.Decode(keyRaw)
		if err != nil {
			return fmt.Errorf("decoding key for object store %q: %w", store.Name, err)
		}

		var fileIDs []string
		if fileIDsRaw.Valid && fileIDsRaw.String != "" {
			fileIDs = strings.Fields(fileIDsRaw.String)
		}

		rec := Record{ObjectStore: store, Key: key, FileIDs: fileIDs}

		switch v := data.(type) {
		case []byte:
			doc, err := decodeInlineValue(v)
			if err != nil {
				return fmt.Errorf("decoding inline value for object store %q: %w", store.Name, err)
			}
			rec.Value = doc
		case int64:
			doc, err := d.decodeExternalValue(v, fileIDs)
			if err != nil {
				return fmt.Errorf("decoding external value for object store %q: %w", store.Name, err)
			}
			rec.Value = doc
			rec.ExternalRef = true
		case nil:
			// no value stored for this key
		default:
			return fmt.Errorf("unexpected data column type %T for object store %q", data, store.Name)
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// decodeInlineValue decompresses a block-Snappy `data` column and decodes
// its structured-clone payload.
func decodeInlineValue(compressed []byte) (*mozclone.Document, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("snappy-decoding inline value: %w", err)
	}
	return mozclone.Decode(raw)
}

// decodeExternalValue resolves an out-of-line `data` column: the low 32
// bits are an index into fileIDs, the 33rd bit flags framed-Snappy
// compression of the referenced file.
// See dom/indexedDB/ActorsParent.cpp, ObjectStoreAddOrPutRequestOp::DoDatabaseWork.
func (d *Database) decodeExternalValue(encoded int64, fileIDs []string) (*mozclone.Document, error) {
	fileIndex := uint32(encoded)
	compressed := encoded&0x100000000 != 0

	if int(fileIndex) >= len(fileIDs) {
		return nil, fmt.Errorf("external file index %d out of range (have %d file ids)", fileIndex, len(fileIDs))
	}
	fileID := fileIDs[fileIndex]
	if !strings.HasPrefix(fileID, ".") {
		return nil, fmt.Errorf("external data file id %q does not start with '.'", fileID)
	}
	fileID = strings.TrimPrefix(fileID, ".")

	f, err := os.Open(filepath.Join(d.filesDir, fileID))
	if err != nil {
		return nil, fmt.Errorf("opening external data file %q: %w", fileID, err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		r = snappy.NewReader(f)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading external data file %q: %w", fileID, err)
	}
	return mozclone.Decode(raw)
}

// GetExternalDataStream opens the raw external data file referenced by
// fileID (without the leading '.'), for callers resolving a Blob/File
// descriptor found inside a decoded value.
func (d *Database) GetExternalDataStream(fileID string) (io.ReadCloser, error) {
	fileID = strings.TrimPrefix(fileID, ".")
	return os.Open(filepath.Join(d.filesDir, fileID))
}

// GetExternalDataFileDetails returns the path of the external data file
// referenced by fileID, and whether it exists.
func (d *Database) GetExternalDataFileDetails(fileID string) (string, bool) {
	fileID = strings.TrimPrefix(fileID, ".")
	path := filepath.Join(d.filesDir, fileID)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func unixMicros(us int64) time.Time {
	return unixEpoch.Add(time.Duration(us) * time.Microsecond)
}
