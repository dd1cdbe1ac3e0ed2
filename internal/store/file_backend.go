package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileBackend keeps each collection as <dir>/<name>.json and its id
// high-water mark as <dir>/<name>.seq.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) CollectionPath(name string) string {
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend) sequencePath(name string) string {
	return filepath.Join(b.dir, name+".seq")
}

func (b *FileBackend) ReadCollection(name string) ([]byte, error) {
	data, err := os.ReadFile(b.CollectionPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCollectionNotFound
	}
	return data, err
}

func (b *FileBackend) WriteCollection(name string, data []byte) error {
	return writeFileAtomic(b.CollectionPath(name), data)
}

func (b *FileBackend) ReadSequence(name string) (int64, error) {
	data, err := os.ReadFile(b.sequencePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence %s: %w", name, err)
	}
	return value, nil
}

func (b *FileBackend) WriteSequence(name string, value int64) error {
	return writeFileAtomic(b.sequencePath(name), []byte(strconv.FormatInt(value, 10)+"\n"))
}

// Quarantine renames <name>.json to <name>.json.corrupt-<utc timestamp>.
func (b *FileBackend) Quarantine(name string) (string, error) {
	src := b.CollectionPath(name)
	dest := src + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(src, dest); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", name, err)
	}
	return dest, nil
}

func (b *FileBackend) Close() error {
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
