package mozosquery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dfirkit/mozreader/mozidb"
	"github.com/dfirkit/mozreader/mozjson"
	"github.com/osquery/osquery-go"
	"github.com/osquery/osquery-go/plugin/table"
)

// firefox_indexeddb exposes every origin's IndexedDB object store records.
// The key and value columns hold JSON text, since osquery columns can't
// carry the structured-clone value graph directly.
func firefoxIndexedDBTable(slogger *slog.Logger) osquery.OsqueryPlugin {
	columns := append(pathColumns(),
		table.ColumnDefinition{Name: "origin", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "database", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "object_store", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "key", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "value", Type: table.ColumnTypeText},
	)

	slogger = slogger.With("table_name", "firefox_indexeddb")

	generate := func(ctx context.Context, queryContext table.QueryContext) ([]map[string]string, error) {
		profilePath, err := requireProfilePath(queryContext)
		if err != nil {
			return nil, err
		}

		storageDefault := filepath.Join(profilePath, "storage", "default")
		entries, err := os.ReadDir(storageDefault)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("reading storage/default: %w", err)
		}

		var rows []map[string]string
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			idbDir := filepath.Join(storageDefault, entry.Name(), "idb")
			if info, err := os.Stat(idbDir); err != nil || !info.IsDir() {
				continue
			}

			folder, err := mozidb.OpenFolder(idbDir)
			if err != nil {
				slogger.Log(ctx, slog.LevelWarn, "opening idb folder", "origin", entry.Name(), "err", err)
				continue
			}

			originRows, err := indexedDBRowsForFolder(ctx, profilePath, entry.Name(), folder)
			closeErr := folder.Close()
			if err != nil {
				return nil, err
			}
			if closeErr != nil {
				slogger.Log(ctx, slog.LevelWarn, "closing idb folder", "origin", entry.Name(), "err", closeErr)
			}
			rows = append(rows, originRows...)
		}

		return rows, nil
	}

	return table.NewPlugin("firefox_indexeddb", columns, generate)
}

func indexedDBRowsForFolder(ctx context.Context, profilePath, origin string, folder *mozidb.Folder) ([]map[string]string, error) {
	var rows []map[string]string
	for _, db := range folder.Databases {
		for _, store := range db.ObjectStores() {
			err := db.IterRecords(ctx, store, func(rec mozidb.Record) error {
				keyJSON, err := json.Marshal(mozjson.IDBKey(rec.Key))
				if err != nil {
					return fmt.Errorf("marshaling key: %w", err)
				}

				valueJSON := []byte("null")
				if rec.Value != nil {
					valueJSON, err = json.Marshal(mozjson.CloneValue(rec.Value, &rec.Value.Root))
					if err != nil {
						return fmt.Errorf("marshaling value: %w", err)
					}
				}

				rows = append(rows, map[string]string{
					profilePathColumn: profilePath,
					"origin":          origin,
					"database":        db.Name,
					"object_store":    store.Name,
					"key":             string(keyJSON),
					"value":           string(valueJSON),
				})
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walking %s/%s/%s: %w", origin, db.Name, store.Name, err)
			}
		}
	}
	return rows, nil
}
