package mozosquery

import (
	"testing"

	"github.com/osquery/osquery-go/plugin/table"
	"github.com/stretchr/testify/require"
)

func queryContextWithEquals(column, value string) table.QueryContext {
	return table.QueryContext{
		Constraints: map[string]table.ConstraintList{
			column: {
				Constraints: []table.Constraint{
					{Operator: table.OperatorEquals, Expression: value},
				},
			},
		},
	}
}

func TestRequireProfilePath(t *testing.T) {
	t.Parallel()

	path, err := requireProfilePath(queryContextWithEquals(profilePathColumn, "/profiles/default"))
	require.NoError(t, err)
	require.Equal(t, "/profiles/default", path)
}

func TestRequireProfilePathMissing(t *testing.T) {
	t.Parallel()

	_, err := requireProfilePath(table.QueryContext{})
	require.Error(t, err)
}

func TestOptionalCachePath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", optionalCachePath(table.QueryContext{}))
	require.Equal(t, "/profiles/default/cache2", optionalCachePath(queryContextWithEquals(cachePathColumn, "/profiles/default/cache2")))
}

func TestEqualsConstraintIgnoresNonEqualsOperators(t *testing.T) {
	t.Parallel()

	qc := table.QueryContext{
		Constraints: map[string]table.ConstraintList{
			profilePathColumn: {
				Constraints: []table.Constraint{
					{Operator: table.OperatorLike, Expression: "%default%"},
				},
			},
		},
	}
	_, ok := equalsConstraint(qc, profilePathColumn)
	require.False(t, ok)
}
