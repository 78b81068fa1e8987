package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dfirkit/mozreader/mozsearch"
	"github.com/dfirkit/mozreader/mozstorage"
)

type localStorageRecordOut struct {
	StorageKey string `json:"storageKey"`
	Origin     string `json:"origin"`
	Key        string `json:"key"`
	Value      string `json:"value"`
}

func runLocalStorage(args []string) error {
	flagset, opts := newFlagSet("localstorage")
	flKey := flagset.String("key", "", "only match records with this exact script key")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	logger := newLogger(*opts.debug)
	store, err := mozstorage.OpenLocalStore(filepath.Join(*opts.profilePath, "storage", "default"))
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var keySearch mozsearch.Search
	if *flKey != "" {
		keySearch = mozsearch.Exact(*flKey)
	}

	perKeyOpts := mozsearch.Options{SkipCorrupt: opts.queryOptions().SkipCorrupt}

	ctx := context.Background()
	count := 0
	for _, storageKey := range store.StorageKeys() {
		meta, _ := store.MetadataFor(storageKey)
		err := store.IterRecords(ctx, mozsearch.Exact(storageKey), keySearch, perKeyOpts, func(rec mozstorage.LocalStorageRecord) error {
			count++
			return writer.Write(localStorageRecordOut{
				StorageKey: storageKey,
				Origin:     meta.Origin,
				Key:        rec.ScriptKey,
				Value:      rec.Value,
			})
		})
		if err != nil {
			return fmt.Errorf("walking local storage for %s: %w", storageKey, err)
		}
	}
	if count == 0 && *opts.raiseOnNoResult {
		return fmt.Errorf("%w: no localStorage records matched", mozstorage.ErrNotFound)
	}

	logger.Info("local storage walk complete", "records", count)
	return nil
}
