package mozosquery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dfirkit/mozreader/mozplaces"
	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/osquery/osquery-go"
	"github.com/osquery/osquery-go/plugin/table"
)

// firefox_history exposes places.sqlite's browsing history visits.
func firefoxHistoryTable(slogger *slog.Logger) osquery.OsqueryPlugin {
	columns := append(pathColumns(),
		table.ColumnDefinition{Name: "url", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "title", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "visit_time", Type: table.ColumnTypeText},
		table.ColumnDefinition{Name: "transition", Type: table.ColumnTypeInteger},
	)

	slogger = slogger.With("table_name", "firefox_history")

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
		err = db.IterHistory(ctx, nil, timeZero, timeZero, mozsearch.Options{}, func(rec mozplaces.HistoryRecord) error {
			rows = append(rows, map[string]string{
				profilePathColumn: profilePath,
				"url":             rec.URL,
				"title":           rec.Title,
				"visit_time":      rec.VisitTime.UTC().Format(timeLayout),
				"transition":      fmt.Sprintf("%d", rec.Transition),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking history: %w", err)
		}

		return rows, nil
	}

	return table.NewPlugin("firefox_history", columns, generate)
}
