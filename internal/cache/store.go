package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Store persists the index. Load returns a fresh empty index when nothing
// has been persisted yet.
type Store interface {
	Load() (*Index, error)
	Save(*Index) error
	Close() error
}

// FileStore keeps the whole index in one JSON document. An advisory lock
// file is held from open to Close so concurrent invocations against the
// same index fail fast instead of clobbering each other; writes go to a
// temp file first and replace the document atomically.
type FileStore struct {
	path     string
	lockPath string
}

// NewFileStore acquires the lock next to path and returns the store.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("index locked by another process (remove %s if stale)", lockPath)
		}
		return nil, fmt.Errorf("acquiring index lock: %w", err)
	}
	fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
	f.Close()
	return &FileStore{path: path, lockPath: lockPath}, nil
}

// Load reads the index document. A missing file is an empty index, not an
// error.
func (s *FileStore) Load() (*Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	idx.normalize()
	return &idx, nil
}

// Save writes the whole index atomically.
func (s *FileStore) Save(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".index-*.json")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// Close releases the advisory lock.
func (s *FileStore) Close() error {
	if err := os.Remove(s.lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing index lock: %w", err)
	}
	return nil
}
