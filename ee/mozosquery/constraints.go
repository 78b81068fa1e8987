package mozosquery

import (
	"fmt"

	"github.com/osquery/osquery-go/plugin/table"
)

// profilePathColumn is the required column every table in this package
// keys its lookup on: the Firefox profile directory to read. Unlike the
// teacher's generic ATC tables (whose "path" column names a config-driven
// source file), here it always means the same thing across tables, so it
// gets one shared name.
const profilePathColumn = "profile_path"

// cachePathColumn overrides the disk-cache directory independently of
// profilePathColumn, since a profile's cache2 folder can live outside the
// profile directory (e.g. a separate "local" profile on some platforms).
const cachePathColumn = "cache_path"

// equalsConstraint returns the first "=" constraint's expression for the
// named column, mirroring getPathConstraint/checkPathConstraints's
// handling of the "path" column but specialized to the common case this
// package needs: an exact match used to pick which profile to read.
func equalsConstraint(queryContext table.QueryContext, column string) (string, bool) {
	constraints, ok := queryContext.Constraints[column]
	if !ok {
		return "", false
	}
	for _, c := range constraints.Constraints {
		if c.Operator == table.OperatorEquals {
			return c.Expression, true
		}
	}
	return "", false
}

// requireProfilePath extracts profile_path from an equality constraint,
// since every table here must be scoped to one profile directory to run
// at all.
func requireProfilePath(queryContext table.QueryContext) (string, error) {
	path, ok := equalsConstraint(queryContext, profilePathColumn)
	if !ok {
		return "", fmt.Errorf("%s requires a WHERE %s = '...' equality constraint", profilePathColumn, profilePathColumn)
	}
	return path, nil
}

func optionalCachePath(queryContext table.QueryContext) string {
	path, _ := equalsConstraint(queryContext, cachePathColumn)
	return path
}

// pathColumns returns the column definitions shared by every table: the
// required profile_path and the optional cache_path override.
func pathColumns() []table.ColumnDefinition {
	return []table.ColumnDefinition{
		{Name: profilePathColumn, Type: table.ColumnTypeText},
		{Name: cachePathColumn, Type: table.ColumnTypeText},
	}
}
