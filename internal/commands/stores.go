package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/results"
	"github.com/alan/repo-auditor/internal/store/sqlite"
)

// Stores are the persistence backends selected by cache_backend
type Stores struct {
	Sets  classify.SetStore
	Docs  results.DocumentStore
	close func() error
}

// Close releases the backend
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the configured backend under the cache directory
func OpenStores(ctx context.Context, config *cmd.Config) (*Stores, error) {
	switch config.CacheBackend {
	case cmd.CacheBackendSQLite:
		db, err := sqlite.Open(ctx, filepath.Join(config.CacheDir, sqlite.FileName))
		if err != nil {
			return nil, err
		}
		return &Stores{Sets: db, Docs: db, close: db.Close}, nil
	case cmd.CacheBackendFile, "":
		return &Stores{
			Sets: classify.NewFileStore(filepath.Join(config.CacheDir, "classify")),
			Docs: results.NewFileStore(filepath.Join(config.CacheDir, "results")),
		}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.CacheBackend)
	}
}
