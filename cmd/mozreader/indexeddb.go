package main

import (
	"context"
	"fmt"

	"github.com/dfirkit/mozreader/mozidb"
	"github.com/dfirkit/mozreader/mozjson"
	"github.com/dfirkit/mozreader/profile"
)

type idbRecordOut struct {
	Origin      string `json:"origin"`
	Database    string `json:"database"`
	ObjectStore string `json:"objectStore"`
	Key         any    `json:"key"`
	Value       any    `json:"value"`
}

func runIndexedDB(args []string) error {
	flagset, opts := newFlagSet("indexeddb")
	flOrigin := flagset.String("origin", "", "only read the given origin directory under storage/default (default: every origin with an idb folder)")
	if err := parseArgs(flagset, args); err != nil {
		return err
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	logger := newLogger(*opts.debug)

	origins, err := discoverIDBOrigins(*opts.profilePath, *flOrigin)
	if err != nil {
		return err
	}

	writer, closeFn, err := newRecordWriter(*opts.outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	count := 0
	for origin, folder := range origins {
		for _, db := range folder.Databases {
			for _, store := range db.ObjectStores() {
				err := db.IterRecords(ctx, store, func(rec mozidb.Record) error {
					count++
					var value any
					if rec.Value != nil {
						value = mozjson.CloneValue(rec.Value, &rec.Value.Root)
					}
					return writer.Write(idbRecordOut{
						Origin:      origin,
						Database:    db.Name,
						ObjectStore: store.Name,
						Key:         mozjson.IDBKey(rec.Key),
						Value:       value,
					})
				})
				if err != nil {
					return fmt.Errorf("walking %s/%s/%s: %w", origin, db.Name, store.Name, err)
				}
			}
		}
		if err := folder.Close(); err != nil {
			return fmt.Errorf("closing idb folder for %s: %w", origin, err)
		}
	}

	logger.Info("indexeddb walk complete", "records", count)
	return nil
}

func discoverIDBOrigins(profilePath, onlyOrigin string) (map[string]*mozidb.Folder, error) {
	p := newProfileForIDB(profilePath)
	if onlyOrigin != "" {
		folder, err := p.IndexedDB(onlyOrigin)
		if err != nil {
			return nil, err
		}
		return map[string]*mozidb.Folder{onlyOrigin: folder}, nil
	}

	names, err := p.IndexedDBOrigins()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*mozidb.Folder, len(names))
	for _, name := range names {
		folder, err := p.IndexedDB(name)
		if err != nil {
			return nil, err
		}
		out[name] = folder
	}
	return out, nil
}

// newProfileForIDB opens a façade with no cache path, since IndexedDB
// traversal never touches the disk cache.
func newProfileForIDB(profilePath string) *profile.Profile {
	return profile.Open(profilePath, "")
}
