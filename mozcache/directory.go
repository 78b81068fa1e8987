package mozcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dfirkit/mozreader/mozsearch"
)

const entriesFolderName = "entries"

// AttributePredicate is one header-attribute test accepted by
// Directory.IterCache: a bool tests presence/absence of the header, anything
// else is matched against the header's value via mozsearch.Hit.
type AttributePredicate struct {
	Name  string
	Value any
}

// Directory is a cache folder (the directory that contains the `index` file
// and the `entries/` subdirectory). Metadata is precached lazily, on first
// use of a lookup that needs it, and then reused for the life of the
// Directory.
type Directory struct {
	root string

	once   sync.Once
	preErr error
	byKey  map[string]cachedEntry
	byURL  map[string][]string
}

type cachedEntry struct {
	path     string
	metadata Metadata
}

// OpenDirectory opens the cache folder at root. root must exist and contain
// an entries/ subdirectory; entries are read lazily.
func OpenDirectory(root string) (*Directory, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening cache folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Directory{root: root}, nil
}

func (d *Directory) entriesPath() string {
	return filepath.Join(d.root, entriesFolderName)
}

// precache builds the key->(path,metadata) and url->[]key lookups used by
// the filtered iteration paths. Building this requires reading every entry
// file's metadata once, so it is deferred until first needed.
func (d *Directory) precache() error {
	d.once.Do(func() {
		entries, err := os.ReadDir(d.entriesPath())
		if err != nil {
			d.preErr = fmt.Errorf("reading entries folder: %w", err)
			return
		}

		d.byKey = make(map[string]cachedEntry, len(entries))
		d.byURL = make(map[string][]string)

		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			path := filepath.Join(d.entriesPath(), ent.Name())
			metadata, err := ReadEntryMetadata(path)
			if err != nil {
				d.preErr = fmt.Errorf("reading metadata for %s: %w", path, err)
				return
			}
			if _, dup := d.byKey[metadata.Key.Raw]; dup {
				d.preErr = fmt.Errorf("%w: duplicate cache key %q", ErrMalformedMetadata, metadata.Key.Raw)
				return
			}
			d.byKey[metadata.Key.Raw] = cachedEntry{path: path, metadata: metadata}
			d.byURL[metadata.Key.URL] = append(d.byURL[metadata.Key.URL], metadata.Key.Raw)
		}
	})
	return d.preErr
}

// IterMetadata calls fn for the metadata of every entry whose URL matches
// search (mozsearch.IsAll(search) matches every entry). Iteration stops
// early, returning fn's error, if fn returns a non-nil error. opts.
// RaiseOnNoResult reports ErrNotFound if nothing matched; opts.SkipCorrupt
// has no effect here, since precache always decodes every entry's metadata
// up front regardless of search.
func (d *Directory) IterMetadata(search mozsearch.Search, opts mozsearch.Options, fn func(Metadata) error) error {
	if err := d.precache(); err != nil {
		return err
	}
	matched := false
	for _, ce := range d.byKey {
		if !mozsearch.Hit(search, ce.metadata.Key.URL) {
			continue
		}
		matched = true
		if err := fn(ce.metadata); err != nil {
			return err
		}
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no cache metadata matched", ErrNotFound)
	}
	return nil
}

// IterCache calls fn for every full cache entry whose URL matches url
// (mozsearch.IsAll(url) or a nil url matches every entry) and whose stored
// HTTP headers satisfy every attribute predicate. A match-all url walks
// every entry without precaching metadata first; any other url precaches
// every entry's metadata before the first call to fn.
// opts.SkipCorrupt skips entries that fail to decode instead of terminating
// iteration with the decode error. With a match-all url this covers both
// metadata and body decode failures; with any other url only body decode
// failures are skipped, and an entry whose metadata fails to decode ends
// iteration with that error during precaching. opts.RaiseOnNoResult
// reports ErrNotFound if nothing matched.
func (d *Directory) IterCache(url mozsearch.Search, predicates []AttributePredicate, opts mozsearch.Options, fn func(Entry) error) error {
	var matched bool
	var err error
	if mozsearch.IsAll(url) {
		matched, err = d.iterAll(predicates, opts, fn)
	} else {
		matched, err = d.iterFiltered(url, predicates, opts, fn)
	}
	if err != nil {
		return err
	}
	if !matched && opts.RaiseOnNoResult {
		return fmt.Errorf("%w: no cache entries matched", ErrNotFound)
	}
	return nil
}

func (d *Directory) iterAll(predicates []AttributePredicate, opts mozsearch.Options, fn func(Entry) error) (bool, error) {
	entries, err := os.ReadDir(d.entriesPath())
	if err != nil {
		return false, fmt.Errorf("reading entries folder: %w", err)
	}
	matched := false
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(d.entriesPath(), ent.Name())
		entry, err := ReadEntryFile(path)
		if err != nil {
			if opts.SkipCorrupt {
				continue
			}
			return matched, fmt.Errorf("reading cache entry %s: %w", path, err)
		}
		if !checkAttributes(entry, predicates) {
			continue
		}
		matched = true
		if err := fn(entry); err != nil {
			return matched, err
		}
	}
	return matched, nil
}

func (d *Directory) iterFiltered(url mozsearch.Search, predicates []AttributePredicate, opts mozsearch.Options, fn func(Entry) error) (bool, error) {
	if err := d.precache(); err != nil {
		return false, err
	}
	matched := false
	for storedURL, keys := range d.byURL {
		if !mozsearch.Hit(url, storedURL) {
			continue
		}
		for _, key := range keys {
			ce := d.byKey[key]
			entry, err := ReadEntryFile(ce.path)
			if err != nil {
				if opts.SkipCorrupt {
					continue
				}
				return matched, fmt.Errorf("reading cache entry %s: %w", ce.path, err)
			}
			if !checkAttributes(entry, predicates) {
				continue
			}
			matched = true
			if err := fn(entry); err != nil {
				return matched, err
			}
		}
	}
	return matched, nil
}

// checkAttributes mirrors _check_attributes: a bool predicate tests header
// presence/absence, anything else requires the header to be present and its
// value to satisfy mozsearch.Hit.
func checkAttributes(entry Entry, predicates []AttributePredicate) bool {
	for _, p := range predicates {
		name := strings.ReplaceAll(p.Name, "_", "-")
		hasAttr := entry.Header.Has(name)

		if want, ok := p.Value.(bool); ok {
			if want != hasAttr {
				return false
			}
			continue
		}

		if !hasAttr {
			return false
		}
		value, _ := entry.Header.Get(name)
		search, ok := p.Value.(mozsearch.Search)
		if !ok {
			return false
		}
		if !mozsearch.Hit(search, value) {
			return false
		}
	}
	return true
}
