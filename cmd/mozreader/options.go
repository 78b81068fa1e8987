package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/peterbourgon/ff/v3"
)

// globalOptions are the flags every subcommand accepts, registered on the
// same flagset shape the teacher's launcher binary uses: a flag.FlagSet
// fed through ff.Parse so KOLIDE_LAUNCHER-style environment variables work
// too (here MOZREADER_-prefixed).
type globalOptions struct {
	profilePath     *string
	cachePath       *string
	debug           *bool
	outputPath      *string
	skipCorrupt     *bool
	raiseOnNoResult *bool
}

// queryOptions builds the mozsearch.Options every subcommand's iterator
// call is given, from the -skip-corrupt/-strict flags.
func (o *globalOptions) queryOptions() mozsearch.Options {
	return mozsearch.Options{
		SkipCorrupt:     *o.skipCorrupt,
		RaiseOnNoResult: *o.raiseOnNoResult,
	}
}

// newFlagSet builds the flagset for a subcommand and registers the flags
// common to all of them. Callers register any subcommand-specific flags on
// the returned flagset and then call ff.Parse themselves, exactly once,
// mirroring parseOptions's single ff.Parse call in the teacher binary.
func newFlagSet(subcommandName string) (*flag.FlagSet, *globalOptions) {
	flagsetName := fmt.Sprintf("mozreader %s", subcommandName)
	flagset := flag.NewFlagSet(flagsetName, flag.ExitOnError)

	opts := &globalOptions{
		profilePath:     flagset.String("profile", "", "path to the Firefox profile directory (places.sqlite, storage/, sessionstore.jsonlz4)"),
		cachePath:       flagset.String("cache", "", "path to the profile's disk-cache directory (defaults to <profile>/cache2)"),
		debug:           flagset.Bool("debug", false, "enable debug-level logging"),
		outputPath:      flagset.String("out", "", "write newline-delimited JSON records to this path instead of stdout"),
		skipCorrupt:     flagset.Bool("skip-corrupt", false, "skip records that fail to decode instead of stopping on the first one"),
		raiseOnNoResult: flagset.Bool("strict", false, "exit with an error if no records match the query"),
	}
	return flagset, opts
}

// resolve validates the parsed global flags and fills in derived defaults.
func (o *globalOptions) resolve() error {
	if *o.profilePath == "" {
		return fmt.Errorf("-profile is required")
	}
	if *o.cachePath == "" {
		*o.cachePath = filepath.Join(*o.profilePath, "cache2")
	}
	return nil
}

func parseArgs(flagset *flag.FlagSet, args []string) error {
	return ff.Parse(flagset, args, ff.WithEnvVarPrefix("MOZREADER"))
}

// parseTimeFlag parses an RFC3339 timestamp flag value, returning the zero
// Time (meaning "unbounded") for an empty string.
func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
