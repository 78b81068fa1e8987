package mozidb

import (
	"fmt"
	"path/filepath"
)

// Folder represents one origin's `idb` directory: every `*.sqlite`
// database it contains, each opened and ready to iterate.
type Folder struct {
	Path      string
	Databases []*Database
}

// OpenFolder opens every `*.sqlite` database directly under path.
func OpenFolder(path string) (*Folder, error) {
	matches, err := filepath.Glob(filepath.Join(path, "*.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("globbing idb folder %s: %w", path, err)
	}

	f := &Folder{Path: path}
	for _, dbPath := range matches {
		db, err := OpenDatabase(dbPath)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening %s: %w", dbPath, err)
		}
		f.Databases = append(f.Databases, db)
	}
	return f, nil
}

// Close closes every database the folder opened.
func (f *Folder) Close() error {
	var firstErr error
	for _, db := range f.Databases {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DatabaseByName finds a database by its internal (not file) name.
func (f *Folder) DatabaseByName(name string) (*Database, bool) {
	for _, db := range f.Databases {
		if db.Name == name {
			return db, true
		}
	}
	return nil, false
}
