package main

import (
	"fmt"

	"github.com/dfirkit/mozreader/mozcache"
	"github.com/dfirkit/mozreader/mozsearch"
)

// cacheRecord is the flattened shape written for each matching entry;
// the body itself is never written, only its length, since decoded bodies
// can be large and are rarely what a triage pass wants.
type cacheRecord struct {
	URL          string `json:"url"`
	Key          string `json:"key"`
	FetchCount   uint32 `json:"fetchCount"`
	LastFetched  string `json:"lastFetched"`
	LastModified string `json:"lastModified"`
	Expiration   string `json:"expiration"`
	IsPinned     bool   `json:"isPinned"`
	ContentType  string `json:"contentType,omitempty"`
	DataLength   int    `json:"dataLength"`
}

func runCache(args []string) error {
	flagset, opts := newFlagSet("cache")
	flURL := flagset.String("url", "", "only match entries whose URL equals this value")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	logger := newLogger(*opts.debug)
	dir, err := mozcache.OpenDirectory(*opts.cachePath)
	if err != nil {
		return fmt.Errorf("opening cache directory: %w", err)
	}

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var search mozsearch.Search
	if *flURL != "" {
		search = mozsearch.Exact(*flURL)
	}

	count := 0
	err = dir.IterCache(search, nil, opts.queryOptions(), func(entry mozcache.Entry) error {
		contentType, _ := entry.Header.Get("content-type")
		rec := cacheRecord{
			URL:          entry.Metadata.Key.URL,
			Key:          entry.Metadata.Key.Raw,
			FetchCount:   entry.Metadata.FetchCount,
			LastFetched:  entry.Metadata.LastFetched.UTC().Format(timeLayout),
			LastModified: entry.Metadata.LastModified.UTC().Format(timeLayout),
			Expiration:   entry.Metadata.Expiration.UTC().Format(timeLayout),
			IsPinned:     entry.Metadata.IsPinned(),
			ContentType:  contentType,
			DataLength:   len(entry.Data),
		}
		count++
		return writer.Write(rec)
	})
	if err != nil {
		return fmt.Errorf("walking cache entries: %w", err)
	}

	logger.Info("cache walk complete", "entries", count)
	return nil
}
