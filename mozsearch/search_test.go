package mozsearch

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHitNilMatchesAll(t *testing.T) {
	t.Parallel()

	require.True(t, Hit(nil, "anything"))
	require.True(t, IsAll(nil))
}

func TestExact(t *testing.T) {
	t.Parallel()

	require.True(t, Hit(Exact("foo"), "foo"))
	require.False(t, Hit(Exact("foo"), "bar"))
	require.False(t, IsAll(Exact("foo")))
}

func TestSet(t *testing.T) {
	t.Parallel()

	s := Set{"a", "b", "c"}
	require.True(t, Hit(s, "b"))
	require.False(t, Hit(s, "z"))
}

func TestRegex(t *testing.T) {
	t.Parallel()

	r := Regex{regexp.MustCompile(`^https://example\.`)}
	require.True(t, Hit(r, "https://example.com/path"))
	require.False(t, Hit(r, "https://other.com/path"))
}

func TestPredicate(t *testing.T) {
	t.Parallel()

	p := Predicate(func(v string) bool { return len(v) > 3 })
	require.True(t, Hit(p, "abcd"))
	require.False(t, Hit(p, "ab"))
}
