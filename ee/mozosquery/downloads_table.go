package mozosquery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dfirkit/mozreader/mozplaces"
	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/osquery/osquery-go"
	"github.com/osquery/osquery-go/plugin/table"
)

// firefox_downloads exposes places.sqlite's download history, joined to
// its destination-path and completion-state annotations.
func firefoxDownloadsTable(slogger *slog.Logger) osquery.OsqueryPlugin {
	columns := append(pathColumns(),
		table.ColumnDefinition{Name: "url", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "destination", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "start_time", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "end_time", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "file_size", Type: table.ColumnTypeInteger},
		table.ColumnDefinition{Name: "deleted", Type: table.ColumnTypeInteger},
		table.ColumnDefinition{Name: "state", Type: table.ColumnTypeInteger},
	)

	slogger = slogger.With("table_name", "firefox_downloads")

	generate := func(ctx context.Context, queryContext table.QueryContext) ([]map[string]string, error) {
		profilePath, err := requireProfilePath(queryContext)
		if err != nil {
			return nil, err
		}

		db, err := mozplaces.Open(placesSQLitePath(profilePath))
		if err != nil {
			slogger.Log(ctx, slog.LevelWarn, "opening places.sqlite", "err", err)
			return nil, fmt.Errorf("opening places.sqlite: %w", err)
		}
		defer db.Close()

		var rows []map[string]string
		// SkipCorrupt: true so one unparsable download annotation doesn't
		// blank an entire table scan; osquery has no way to ask for the
		// strict behavior.
		err = db.IterDownloads(ctx, mozsearch.Options{SkipCorrupt: true}, func(dl mozplaces.Download) error {
			fileSize := ""
			if dl.HasFileSize {
				fileSize = strconv.FormatInt(dl.FileSize, 10)
			}
			rows = append(rows, map[string]string{
				profilePathColumn: profilePath,
				"url":             dl.URL,
				"destination":     dl.DownloadedLocation,
				"start_time":      dl.VisitTime.UTC().Format(timeLayout),
				"end_time":        dl.EndTime.UTC().Format(timeLayout),
				"file_size":       fileSize,
				"deleted":         boolToSQL(dl.Deleted),
				"state":           strconv.Itoa(int(dl.State)),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking downloads: %w", err)
		}

		return rows, nil
	}

	return table.NewPlugin("firefox_downloads", columns, generate)
}
