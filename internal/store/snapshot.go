package store

import (
	"os"
	"path/filepath"
)

// WriteSnapshot writes the latest run payload to a well-known path for
// external consumers (spreadsheets, the shop display). Write-then-rename so
// readers never observe a torn file.
func WriteSnapshot(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
