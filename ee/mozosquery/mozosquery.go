// Package mozosquery exposes Firefox profile artifacts as osquery virtual
// tables, the same way ee/katc exposes its configuration-driven ATC
// tables: one table.NewPlugin per artifact, aggregated into a single
// registration call.
package mozosquery

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/osquery/osquery-go"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// timeZero is the zero time.Time, meaning "unbounded" to mozplaces.IterHistory.
var timeZero time.Time

func placesSQLitePath(profilePath string) string {
	return filepath.Join(profilePath, "places.sqlite")
}

// Tables returns every Firefox-profile table this package exposes, ready
// to hand to osquery.NewExtensionManagerServer's RegisterPlugin.
func Tables(slogger *slog.Logger) []osquery.OsqueryPlugin {
	return []osquery.OsqueryPlugin{
		firefoxCacheTable(slogger),
		firefoxHistoryTable(slogger),
		firefoxDownloadsTable(slogger),
		firefoxIndexedDBTable(slogger),
		firefoxStorageTable(slogger),
	}
}

func boolToSQL(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
