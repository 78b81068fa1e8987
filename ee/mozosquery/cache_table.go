package mozosquery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/dfirkit/mozreader/mozcache"
	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/osquery/osquery-go"
	"github.com/osquery/osquery-go/plugin/table"
)

// firefox_cache exposes disk-cache entries: every cached URL's metadata
// plus the decoded body length.
func firefoxCacheTable(slogger *slog.Logger) osquery.OsqueryPlugin {
	columns := append(pathColumns(),
		table.ColumnDefinition{Name: "url", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "cache_key", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "fetch_count", Type: table.ColumnTypeInteger},
		table.ColumnDefinition{Name: "last_fetched", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "last_modified", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "expiration", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "is_pinned", Type: table.ColumnTypeInteger},
		table.ColumnDefinition{Name: "content_type", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "data_length", Type: table.ColumnTypeInteger},
	)

	slogger = slogger.With("table_name", "firefox_cache")

	generate := func(ctx context.Context, queryContext table.QueryContext) ([]map[string]string, error) {
		profilePath, err := requireProfilePath(queryContext)
		if err != nil {
			return nil, err
		}
		cachePath := optionalCachePath(queryContext)
		if cachePath == "" {
			cachePath = filepath.Join(profilePath, "cache2")
		}

		dir, err := mozcache.OpenDirectory(cachePath)
		if err != nil {
			slogger.Log(ctx, slog.LevelWarn, "opening cache directory", "err", err)
			return nil, fmt.Errorf("opening cache directory: %w", err)
		}

		var rows []map[string]string
		// SkipCorrupt: true so one malformed entry doesn't blank an entire
		// table scan; osquery has no way to ask for the strict behavior.
		err = dir.IterCache(nil, nil, mozsearch.Options{SkipCorrupt: true}, func(entry mozcache.Entry) error {
			contentType, _ := entry.Header.Get("content-type")
			rows = append(rows, map[string]string{
				profilePathColumn: profilePath,
				cachePathColumn:   cachePath,
				"url":             entry.Metadata.Key.URL,
				"cache_key":       entry.Metadata.Key.Raw,
				"fetch_count":     strconv.FormatUint(uint64(entry.Metadata.FetchCount), 10),
				"last_fetched":    entry.Metadata.LastFetched.UTC().Format(timeLayout),
				"last_modified":   entry.Metadata.LastModified.UTC().Format(timeLayout),
				"expiration":      entry.Metadata.Expiration.UTC().Format(timeLayout),
				"is_pinned":       boolToSQL(entry.Metadata.IsPinned()),
				"content_type":    contentType,
				"data_length":     strconv.Itoa(len(entry.Data)),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking cache entries: %w", err)
		}

		return rows, nil
	}

	return table.NewPlugin("firefox_cache", columns, generate)
}
