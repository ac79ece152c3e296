// Package local implements the store contracts on the local filesystem.
//
// A collection lives in its own directory:
//
//	<dir>/id            decimal counter of the last assigned id
//	<dir>/data/<id>.json one encoded record per file
//
// The filesystem backend assumes a single writer process.
package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"pracstore/internal/logging"
)

var llog = logging.For("store-local")

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// writeAtomic replaces path with data via a uniquely named temp file in
// the same directory, so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// writeExclusive creates path and fails if it already exists.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}
	return nil
}
