package mozcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHTTPHeadersEmpty(t *testing.T) {
	t.Parallel()

	version, status, headers := ParseHTTPHeaders("")
	require.Equal(t, "", version)
	require.Equal(t, "", status)
	require.False(t, headers.Has("content-type"))
}

func TestParseHTTPHeadersStatusLineAndFields(t *testing.T) {
	t.Parallel()

	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 42\r\n"
	version, status, headers := ParseHTTPHeaders(raw)
	require.Equal(t, "HTTP/1.1", version)
	require.Equal(t, "200 OK", status)

	ct, ok := headers.Get("Content-Type")
	require.True(t, ok)
	require.Equal(t, "text/html", ct)

	cl, ok := headers.Get("content-length")
	require.True(t, ok)
	require.Equal(t, "42", cl)
}

func TestParseHTTPHeadersCaseInsensitiveLookup(t *testing.T) {
	t.Parallel()

	_, _, headers := ParseHTTPHeaders("HTTP/1.1 200 OK\r\nX-Custom: value\r\n")
	v, ok := headers.Get("x-CUSTOM")
	require.True(t, ok)
	require.Equal(t, "value", v)
	require.True(t, headers.Has("X-Custom"))
}

func TestParseHTTPHeadersFoldedContinuationLine(t *testing.T) {
	t.Parallel()

	raw := "HTTP/1.1 200 OK\r\nX-Long: first\r\n second\r\n"
	_, _, headers := ParseHTTPHeaders(raw)
	v, ok := headers.Get("x-long")
	require.True(t, ok)
	require.Equal(t, "first second", v)
}

func TestParseHTTPHeadersLastWriteWins(t *testing.T) {
	t.Parallel()

	raw := "HTTP/1.1 200 OK\r\nX-Dup: first\r\nX-Dup: second\r\n"
	_, _, headers := ParseHTTPHeaders(raw)
	v, ok := headers.Get("x-dup")
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestParseHTTPHeadersNamesLowercased(t *testing.T) {
	t.Parallel()

	_, _, headers := ParseHTTPHeaders("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n")
	require.Contains(t, headers.Names(), "content-type")
}
