package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupSQLite moves the database file at path, with its WAL side files,
// into a backups directory next to it. It returns the backup path, or ""
// when there was nothing to move.
func BackupSQLite(path string, now time.Time) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat database: %w", err)
	}

	dir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	target := filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext))

	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("move database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Rename(path+suffix, target+suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return target, fmt.Errorf("move %s: %w", suffix, err)
		}
	}
	return target, nil
}
