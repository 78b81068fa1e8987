package mozstorage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/pierrec/lz4/v4"
)

// mozLz4Magic is the 8-byte header every `.jsonlz4`/`.baklz4` file starts
// with, ahead of a u32 LE decompressed-length and an LZ4 block payload.
var mozLz4Magic = []byte("mozLz40\x00")

// decodeMozLz4 decompresses a mozLz4-framed buffer to its raw (JSON) bytes.
func decodeMozLz4(framed []byte) ([]byte, error) {
	if len(framed) < len(mozLz4Magic)+4 {
		return nil, fmt.Errorf("mozLz4 buffer too short for header (%d bytes)", len(framed))
	}
	if string(framed[:len(mozLz4Magic)]) != string(mozLz4Magic) {
		return nil, fmt.Errorf("mozLz4 magic mismatch: got %x", framed[:len(mozLz4Magic)])
	}

	lengthOffset := len(mozLz4Magic)
	decompressedLength := binary.LittleEndian.Uint32(framed[lengthOffset : lengthOffset+4])

	dst := make([]byte, decompressedLength)
	n, err := lz4.UncompressBlock(framed[lengthOffset+4:], dst)
	if err != nil {
		return nil, fmt.Errorf("decompressing mozLz4 block: %w", err)
	}
	return dst[:n], nil
}

// SessionStoreRecord is one key/value pair recovered from a session store
// snapshot's per-tab `storage` object.
type SessionStoreRecord struct {
	Host        string
	Key         string
	Value       string
	IsClosedTab bool
	OriginFile  string
}

// SessionStorage aggregates sessionStorage records from the live
// sessionstore snapshot and every backup beneath sessionstore-backups.
type SessionStorage struct {
	records []SessionStoreRecord
}

// OpenSessionStorage loads `sessionstore.jsonlz4` (if present) and every
// `sessionstore-backups/*.jsonlz4` / `*.baklz4` beneath profilePath.
func OpenSessionStorage(profilePath string) (*SessionStorage, error) {
	ss := &SessionStorage{}

	live := filepath.Join(profilePath, "sessionstore.jsonlz4")
	if fileExists(live) {
		recs, err := recordsFromFile(live)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", live, err)
		}
		ss.records = append(ss.records, recs...)
	}

	backupsDir := filepath.Join(profilePath, "sessionstore-backups")
	entries, err := os.ReadDir(backupsDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.Contains(name, "jsonlz4") && filepath.Ext(name) != ".baklz4" {
				continue
			}
			path := filepath.Join(backupsDir, name)
			recs, err := recordsFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			ss.records = append(ss.records, recs...)
		}
	}

	return ss, nil
}

type sessionStoreSnapshot struct {
	Windows []sessionStoreWindow `json:"windows"`
}

type sessionStoreWindow struct {
	Tabs       []sessionStoreTab       `json:"tabs"`
	ClosedTabs []sessionStoreClosedTab `json:"_closedTabs"`
}

type sessionStoreTab struct {
	Storage map[string]map[string]string `json:"storage"`
}

type sessionStoreClosedTab struct {
	State sessionStoreTab `json:"state"`
}

func recordsFromFile(path string) ([]SessionStoreRecord, error) {
	framed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decodeMozLz4(framed)
	if err != nil {
		return nil, err
	}

	var snapshot sessionStoreSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing session store JSON: %w", err)
	}

	var records []SessionStoreRecord
	for _, window := range snapshot.Windows {
		for _, tab := range window.Tabs {
			records = append(records, storageRecords(tab.Storage, false, path)...)
		}
		for _, closed := range window.ClosedTabs {
			records = append(records, storageRecords(closed.State.Storage, true, path)...)
		}
	}
	return records, nil
}

func storageRecords(storage map[string]map[string]string, closed bool, originFile string) []SessionStoreRecord {
	var out []SessionStoreRecord
	for host, kv := range storage {
		for key, value := range kv {
			out = append(out, SessionStoreRecord{
				Host:        host,
				Key:         key,
				Value:       value,
				IsClosedTab: closed,
				OriginFile:  originFile,
			})
		}
	}
	return out
}

// IterRecords walks every loaded record whose host matches host and whose
// key matches key (either Search may be nil to match everything).
// opts.RaiseOnNoResult reports ErrNotFound if nothing matched;
// opts.SkipCorrupt has no effect here, since every record is already fully
// decoded by OpenSessionStorage.
func (ss *SessionStorage) IterRecords(host, key mozsearch.Search, opts mozsearch.Options, fn func(SessionStoreRecord) error) error {
	matched := false
	for _, rec := range ss.records {
		if !mozsearch.Hit(host, rec.Host) {
			continue
		}
		if !mozsearch.Hit(key, rec.Key) {
			continue
		}
		matched = true
		if err := fn(rec); err != nil {
			return err
		}
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no sessionStorage records matched", ErrNotFound)
	}
	return nil
}

// Hosts returns the distinct hosts present across every loaded snapshot.
func (ss *SessionStorage) Hosts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range ss.records {
		if _, ok := seen[rec.Host]; ok {
			continue
		}
		seen[rec.Host] = struct{}{}
		out = append(out, rec.Host)
	}
	return out
}
