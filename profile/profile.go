// Package profile is the top-level façade over one Firefox profile
// directory: it lazily opens the cache directory, every origin's
// IndexedDB/local-storage/session-storage state, and places.sqlite, and
// owns every SQLite handle it opens until Close.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dfirkit/mozreader/mozcache"
	"github.com/dfirkit/mozreader/mozidb"
	"github.com/dfirkit/mozreader/mozplaces"
	"github.com/dfirkit/mozreader/mozstorage"
	"github.com/dfirkit/mozreader/storagemeta"
)

// Profile is a lazily-initialized view over a Firefox profile directory
// (the `places.sqlite`/`storage/`/`sessionstore.jsonlz4` parent folder)
// and an independent cache directory (the `entries`/`index` parent
// folder, normally `cache2` under the profile's local directory).
type Profile struct {
	profilePath string
	cachePath   string

	cacheOnce sync.Once
	cache     *mozcache.Directory
	cacheErr  error

	placesOnce sync.Once
	places     *mozplaces.Database
	placesErr  error

	localStoreOnce sync.Once
	localStore     *mozstorage.LocalStore
	localStoreErr  error

	sessionStoreOnce sync.Once
	sessionStore     *mozstorage.SessionStorage
	sessionStoreErr  error

	idbOnce sync.Once
	idb     map[string]*mozidb.Folder // origin -> folder
	idbErr  error
}

// Open returns a Profile bound to profilePath and cachePath. Neither path
// is touched until the corresponding accessor is first called.
func Open(profilePath, cachePath string) *Profile {
	return &Profile{profilePath: profilePath, cachePath: cachePath}
}

// Cache returns the profile's disk-cache directory view, opening it on
// first call.
func (p *Profile) Cache() (*mozcache.Directory, error) {
	p.cacheOnce.Do(func() {
		p.cache, p.cacheErr = mozcache.OpenDirectory(p.cachePath)
	})
	return p.cache, p.cacheErr
}

// Places returns the profile's places.sqlite view, opening it on first
// call.
func (p *Profile) Places() (*mozplaces.Database, error) {
	p.placesOnce.Do(func() {
		p.places, p.placesErr = mozplaces.Open(filepath.Join(p.profilePath, "places.sqlite"))
	})
	return p.places, p.placesErr
}

// LocalStorage returns the profile's localStorage view across every
// origin beneath `storage/default`, opening it on first call.
func (p *Profile) LocalStorage() (*mozstorage.LocalStore, error) {
	p.localStoreOnce.Do(func() {
		p.localStore, p.localStoreErr = mozstorage.OpenLocalStore(p.storageDefaultPath())
	})
	return p.localStore, p.localStoreErr
}

// SessionStorage returns the profile's sessionStorage view (live snapshot
// plus backups), opening it on first call.
func (p *Profile) SessionStorage() (*mozstorage.SessionStorage, error) {
	p.sessionStoreOnce.Do(func() {
		p.sessionStore, p.sessionStoreErr = mozstorage.OpenSessionStorage(p.profilePath)
	})
	return p.sessionStore, p.sessionStoreErr
}

// IndexedDB returns the IndexedDB folder for the given origin directory
// name (as it appears beneath `storage/default`). The first call to
// IndexedDB or IndexedDBOrigins opens every database of every origin.
func (p *Profile) IndexedDB(originDir string) (*mozidb.Folder, error) {
	if _, err := p.indexedDBOrigins(); err != nil {
		return nil, err
	}
	folder, ok := p.idb[originDir]
	if !ok {
		return nil, fmt.Errorf("no idb folder found for origin directory %q", originDir)
	}
	return folder, nil
}

// IndexedDBOrigins returns every origin directory name beneath
// `storage/default` that has an `idb` subfolder, opening all of them on
// first call.
func (p *Profile) IndexedDBOrigins() ([]string, error) {
	origins, err := p.indexedDBOrigins()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(origins))
	for origin := range origins {
		out = append(out, origin)
	}
	return out, nil
}

func (p *Profile) indexedDBOrigins() (map[string]*mozidb.Folder, error) {
	p.idbOnce.Do(func() {
		p.idb = make(map[string]*mozidb.Folder)

		entries, err := os.ReadDir(p.storageDefaultPath())
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			p.idbErr = fmt.Errorf("reading storage/default: %w", err)
			return
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			idbDir := filepath.Join(p.storageDefaultPath(), entry.Name(), "idb")
			info, err := os.Stat(idbDir)
			if err != nil || !info.IsDir() {
				continue
			}
			folder, err := mozidb.OpenFolder(idbDir)
			if err != nil {
				p.idbErr = fmt.Errorf("opening idb folder for %s: %w", entry.Name(), err)
				return
			}
			p.idb[entry.Name()] = folder
		}
	})
	return p.idb, p.idbErr
}

// OriginMetadata reads the `.metadata-v2` sidecar for the given origin
// directory name, independent of whether that origin has any local
// storage or IndexedDB data.
func (p *Profile) OriginMetadata(originDir string) (storagemeta.Metadata, error) {
	return storagemeta.Read(filepath.Join(p.storageDefaultPath(), originDir, ".metadata-v2"))
}

func (p *Profile) storageDefaultPath() string {
	return filepath.Join(p.profilePath, "storage", "default")
}

// Close releases every SQLite handle and open file descriptor the
// profile has opened so far. It is safe to call even if no accessor was
// ever called.
func (p *Profile) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.places != nil {
		note(p.places.Close())
	}
	for _, folder := range p.idb {
		note(folder.Close())
	}

	return firstErr
}
