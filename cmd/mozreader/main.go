// Command mozreader reads forensic artifacts out of a Firefox profile
// directory: disk cache entries, browsing history and downloads,
// IndexedDB records, and local/session storage key-value pairs. Each
// subcommand writes one JSON object per record to stdout (or -out).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dfirkit/mozreader/internal/multislogger"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "cache":
		err = runCache(args)
	case "history":
		err = runHistory(args)
	case "downloads":
		err = runDownloads(args)
	case "indexeddb":
		err = runIndexedDB(args)
	case "localstorage":
		err = runLocalStorage(args)
	case "sessionstorage":
		err = runSessionStorage(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n\n", subcommand)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "mozreader %s: %v\n", subcommand, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mozreader <subcommand> -profile <path> [flags]

subcommands:
  cache           walk disk-cache entries
  history         walk browsing history visits
  downloads       walk download history
  indexeddb       walk IndexedDB records
  localstorage    walk localStorage key-value pairs
  sessionstorage  walk sessionStorage key-value pairs (live + backups)

every subcommand accepts -profile (required), -cache, -debug, -out`)
}

// newLogger builds a stderr-backed logger so record output on stdout stays
// clean JSON lines; -debug lowers the level to slog.LevelDebug.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return multislogger.New(handler).Logger
}
