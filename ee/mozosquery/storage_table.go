package mozosquery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/dfirkit/mozreader/mozstorage"
	"github.com/osquery/osquery-go"
	"github.com/osquery/osquery-go/plugin/table"
)

// firefox_storage exposes both localStorage and sessionStorage key-value
// pairs under one table, distinguished by storage_type, since both are
// "origin/host -> key -> value" data with the same shape.
func firefoxStorageTable(slogger *slog.Logger) osquery.OsqueryPlugin {
	columns := append(pathColumns(),
		table.ColumnDefinition{Name: "storage_type", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "origin", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "key", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "value", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "is_closed_tab", Type: table.ColumnTypeInteger},
	)

	slogger = slogger.With("table_name", "firefox_storage")

	generate := func(ctx context.Context, queryContext table.QueryContext) ([]map[string]string, error) {
		profilePath, err := requireProfilePath(queryContext)
		if err != nil {
			return nil, err
		}

		var rows []map[string]string

		localRows, err := localStorageRows(ctx, profilePath)
		if err != nil {
			slogger.Log(ctx, slog.LevelWarn, "reading local storage", "err", err)
		} else {
			rows = append(rows, localRows...)
		}

		sessionRows, err := sessionStorageRows(profilePath)
		if err != nil {
			slogger.Log(ctx, slog.LevelWarn, "reading session storage", "err", err)
		} else {
			rows = append(rows, sessionRows...)
		}

		return rows, nil
	}

	return table.NewPlugin("firefox_storage", columns, generate)
}

func localStorageRows(ctx context.Context, profilePath string) ([]map[string]string, error) {
	store, err := mozstorage.OpenLocalStore(filepath.Join(profilePath, "storage", "default"))
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	origins := make(map[string]string, len(store.StorageKeys()))
	for _, storageKey := range store.StorageKeys() {
		meta, _ := store.MetadataFor(storageKey)
		origins[storageKey] = meta.Origin
	}

	var rows []map[string]string
	// SkipCorrupt: true so one malformed value doesn't blank an entire
	// table scan; osquery has no way to ask for the strict behavior.
	err = store.IterRecords(ctx, nil, nil, mozsearch.Options{SkipCorrupt: true}, func(rec mozstorage.LocalStorageRecord) error {
		rows = append(rows, map[string]string{
			profilePathColumn: profilePath,
			"storage_type":    "local",
			"origin":          origins[rec.StorageKey],
			"key":             rec.ScriptKey,
			"value":           rec.Value,
			"is_closed_tab":   boolToSQL(false),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking local storage: %w", err)
	}
	return rows, nil
}

func sessionStorageRows(profilePath string) ([]map[string]string, error) {
	ss, err := mozstorage.OpenSessionStorage(profilePath)
	if err != nil {
		return nil, fmt.Errorf("opening session storage: %w", err)
	}

	var rows []map[string]string
	err = ss.IterRecords(nil, nil, mozsearch.Options{}, func(rec mozstorage.SessionStoreRecord) error {
		rows = append(rows, map[string]string{
			profilePathColumn: profilePath,
			"storage_type":    "session",
			"origin":          rec.Host,
			"key":             rec.Key,
			"value":           rec.Value,
			"is_closed_tab":   boolToSQL(rec.IsClosedTab),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking session storage: %w", err)
	}
	return rows, nil
}
