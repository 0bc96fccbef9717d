package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alan/repo-auditor/internal/store"
)

// FileStore keeps each document as <dir>/<name>.json
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir (usually <cache_dir>/results)
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load implements DocumentStore
func (s *FileStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path(name), err)
	}
	return data, nil
}

// Save implements DocumentStore
func (s *FileStore) Save(name string, data []byte) error {
	return store.WriteFileAtomic(s.path(name), data)
}

// Delete implements DocumentStore
func (s *FileStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", s.path(name), err)
	}
	return nil
}
