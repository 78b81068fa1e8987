package main

import (
	"fmt"

	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/dfirkit/mozreader/mozstorage"
)

type sessionStorageRecordOut struct {
	Host        string `json:"host"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	IsClosedTab bool   `json:"isClosedTab"`
	OriginFile  string `json:"originFile"`
}

func runSessionStorage(args []string) error {
	flagset, opts := newFlagSet("sessionstorage")
	flHost := flagset.String("host", "", "only match records for this exact host")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	logger := newLogger(*opts.debug)
	ss, err := mozstorage.OpenSessionStorage(*opts.profilePath)
	if err != nil {
		return fmt.Errorf("opening session storage: %w", err)
	}

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var hostSearch mozsearch.Search
	if *flHost != "" {
		hostSearch = mozsearch.Exact(*flHost)
	}

	count := 0
	err = ss.IterRecords(hostSearch, nil, opts.queryOptions(), func(rec mozstorage.SessionStoreRecord) error {
		count++
		return writer.Write(sessionStorageRecordOut{
			Host:        rec.Host,
			Key:         rec.Key,
			Value:       rec.Value,
			IsClosedTab: rec.IsClosedTab,
			OriginFile:  rec.OriginFile,
		})
	})
	if err != nil {
		return fmt.Errorf("walking session storage: %w", err)
	}

	logger.Info("session storage walk complete", "records", count)
	return nil
}
