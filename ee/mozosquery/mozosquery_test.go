package mozosquery

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTablesRegistersOneTablePerArtifact(t *testing.T) {
	t.Parallel()

	plugins := Tables(slog.Default())
	require.Len(t, plugins, 5)

	names := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		names[p.Name()] = true
	}

	for _, want := range []string{"firefox_cache", "firefox_history", "firefox_downloads", "firefox_indexeddb", "firefox_storage"} {
		require.True(t, names[want], "expected table %q to be registered", want)
	}
}
