// Package sqliteutil centralizes the copy-then-open-read-only pattern used
// everywhere this module reads a Firefox sqlite database: profiles may be
// read while Firefox itself holds the file open, so every query runs
// against a throwaway copy rather than the original.
package sqliteutil

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open copies the sqlite database at path into a temporary directory and
// opens it read-only (mode=ro). The returned close function removes the
// temporary copy in addition to closing the handle; callers must call it
// exactly once.
func Open(path string) (db *sql.DB, closeFn func() error, err error) {
	tempDir, err := os.MkdirTemp("", "mozreader-sqlite-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating temp dir for %s: %w", path, err)
	}

	tempPath := filepath.Join(tempDir, filepath.Base(path))
	if err := copyFile(path, tempPath); err != nil {
		os.RemoveAll(tempDir)
		return nil, nil, fmt.Errorf("copying %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", tempPath)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, nil, fmt.Errorf("opening sqlite db %s: %w", tempPath, err)
	}

	return conn, func() error {
		closeErr := conn.Close()
		if rmErr := os.RemoveAll(tempDir); rmErr != nil && closeErr == nil {
			closeErr = rmErr
		}
		return closeErr
	}, nil
}

func copyFile(src, dst string) error {
	srcFh, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFh.Close()

	dstFh, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFh, srcFh); err != nil {
		dstFh.Close()
		return err
	}
	return dstFh.Close()
}
