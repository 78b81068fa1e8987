package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dfirkit/mozreader/mozplaces"
	"github.com/dfirkit/mozreader/mozsearch"
)

type historyRecord struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	VisitTime  string `json:"visitTime"`
	Transition int    `json:"transition"`
}

func runHistory(args []string) error {
	flagset, opts := newFlagSet("history")
	flURL := flagset.String("url", "", "only match visits for this exact URL")
	flSince := flagset.String("since", "", "only match visits at or after this RFC3339 timestamp")
	flUntil := flagset.String("until", "", "only match visits at or before this RFC3339 timestamp")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	since, err := parseTimeFlag(*flSince)
	if err != nil {
		return fmt.Errorf("parsing -since: %w", err)
	}
	until, err := parseTimeFlag(*flUntil)
	if err != nil {
		return fmt.Errorf("parsing -until: %w", err)
	}

	logger := newLogger(*opts.debug)
	db, err := mozplaces.Open(placesPath(*opts.profilePath))
	if err != nil {
		return fmt.Errorf("opening places.sqlite: %w", err)
	}
	defer db.Close()

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var search mozsearch.Search
	if *flURL != "" {
		search = mozsearch.Exact(*flURL)
	}

	ctx := context.Background()
	count := 0
	err = db.IterHistory(ctx, search, since, until, opts.queryOptions(), func(rec mozplaces.HistoryRecord) error {
		count++
		return writer.Write(historyRecord{
			URL:        rec.URL,
			Title:      rec.Title,
			VisitTime:  rec.VisitTime.UTC().Format(timeLayout),
			Transition: int(rec.Transition),
		})
	})
	if err != nil {
		return fmt.Errorf("walking history: %w", err)
	}

	logger.Info("history walk complete", "visits", count)
	return nil
}

type downloadRecord struct {
	URL         string `json:"url"`
	Destination string `json:"destination"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	FileSize    int64  `json:"fileSize,omitempty"`
	HasFileSize bool   `json:"hasFileSize"`
	Deleted     bool   `json:"deleted"`
	State       int    `json:"state"`
}

func runDownloads(args []string) error {
	flagset, opts := newFlagSet("downloads")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	logger := newLogger(*opts.debug)
	db, err := mozplaces.Open(placesPath(*opts.profilePath))
	if err != nil {
		return fmt.Errorf("opening places.sqlite: %w", err)
	}
	defer db.Close()

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	count := 0
	err = db.IterDownloads(ctx, opts.queryOptions(), func(dl mozplaces.Download) error {
		count++
		return writer.Write(downloadRecord{
			URL:         dl.URL,
			Destination: dl.DownloadedLocation,
			StartTime:   dl.VisitTime.UTC().Format(timeLayout),
			EndTime:     dl.EndTime.UTC().Format(timeLayout),
			FileSize:    dl.FileSize,
			HasFileSize: dl.HasFileSize,
			Deleted:     dl.Deleted,
			State:       int(dl.State),
		})
	})
	if err != nil {
		return fmt.Errorf("walking downloads: %w", err)
	}

	logger.Info("downloads walk complete", "downloads", count)
	return nil
}

func placesPath(profilePath string) string {
	return filepath.Join(profilePath, "places.sqlite")
}
