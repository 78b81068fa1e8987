package mozcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeyURLOnly(t *testing.T) {
	t.Parallel()

	key, err := ParseKey(":https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", key.URL)
	require.False(t, key.HasOriginSuffix)
	require.False(t, key.HasIDEnhance)
}

func TestParseKeyWithOriginSuffixAndFlags(t *testing.T) {
	t.Parallel()

	raw := "O^partitionKey=%28https%2Cexample.com%29,a,:https://example.com/"
	key, err := ParseKey(raw)
	require.NoError(t, err)
	require.True(t, key.HasOriginSuffix)
	require.Equal(t, "^partitionKey=%28https%2Cexample.com%29", key.OriginSuffix)
	require.True(t, key.IsAnonymous)
	require.Equal(t, "https://example.com/", key.URL)
}

func TestParseKeyEscapedCommaInValue(t *testing.T) {
	t.Parallel()

	// "a,,b" within an O value decodes to the literal value "a,b".
	key, err := ParseKey("Oa,,b,:https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "a,b", key.OriginSuffix)
}

func TestParseKeyIDEnhance(t *testing.T) {
	t.Parallel()

	key, err := ParseKey("~predictor-origin,:https://example.com/img.png")
	require.NoError(t, err)
	require.True(t, key.HasIDEnhance)
	require.Equal(t, "predictor-origin", key.IDEnhance)
}

func TestParseKeyPrivateBrowsingFlag(t *testing.T) {
	t.Parallel()

	key, err := ParseKey("p,:https://example.com/")
	require.NoError(t, err)
	require.True(t, key.SyncWithPrivateBrowsing)
}

func TestParseKeyRejectsLegacyTag(t *testing.T) {
	t.Parallel()

	_, err := ParseKey("b,:https://example.com/")
	require.ErrorIs(t, err, ErrMalformedKey)
}

func TestParseKeyRejectsUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := ParseKey("z,:https://example.com/")
	require.ErrorIs(t, err, ErrMalformedKey)
}

func TestParseKeyRejectsMissingComma(t *testing.T) {
	t.Parallel()

	_, err := ParseKey("a:https://example.com/")
	require.ErrorIs(t, err, ErrMalformedKey)
}

func TestParseKeyEmpty(t *testing.T) {
	t.Parallel()

	key, err := ParseKey("")
	require.NoError(t, err)
	require.Equal(t, Key{Raw: ""}, key)
}

func TestKeyEqual(t *testing.T) {
	t.Parallel()

	a, err := ParseKey(":https://example.com/")
	require.NoError(t, err)
	b, err := ParseKey(":https://example.com/")
	require.NoError(t, err)
	c, err := ParseKey(":https://other.example/")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
