package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// maxFileSize bounds how much of a single file is read during a local walk
const maxFileSize = 2 << 20

// Cloner keeps a local checkout of a repository branch up to date
type Cloner interface {
	Sync(ctx context.Context, fullName, branch string) (string, error)
}

// LocalScanner scans a local clone with a recursive walk
type LocalScanner struct {
	cloner Cloner
}

// NewLocalScanner creates a scanner that clones or updates repositories before walking them
func NewLocalScanner(cloner Cloner) *LocalScanner {
	return &LocalScanner{cloner: cloner}
}

// Scan implements Scanner
func (s *LocalScanner) Scan(ctx context.Context, target Target, set PatternSet) ([]Finding, error) {
	dir, err := s.cloner.Sync(ctx, target.FullName, target.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to sync clone of %s: %w", target.FullName, err)
	}
	return ScanDir(ctx, dir, set, target.Branch)
}

// ScanDir walks root and evaluates the set against every in-scope file
func ScanDir(ctx context.Context, root string, set PatternSet, branch string) ([]Finding, error) {
	m, err := newMatcher(set)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if m.excluder.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !m.candidate(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		content, err := os.ReadFile(path) //nolint:gosec // path comes from walking the clone directory
		if err != nil {
			slog.Debug("Skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		m.add(rel, content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return m.findings(branch), nil
}
