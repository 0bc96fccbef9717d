package scanner

import (
	"fmt"
	"path/filepath"

	"github.com/moby/patternmatcher"
)

// Excluder matches repository-relative paths against excluded directories and file globs
type Excluder struct {
	matcher *patternmatcher.PatternMatcher
}

// NewExcluder builds an excluder; every entry matches at any depth
func NewExcluder(dirs, globs []string) (*Excluder, error) {
	patterns := make([]string, 0, len(dirs)+len(globs))
	for _, d := range dirs {
		patterns = append(patterns, "**/"+d)
	}
	for _, g := range globs {
		patterns = append(patterns, "**/"+g)
	}

	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &Excluder{matcher: pm}, nil
}

// Excluded reports whether the path or any of its parent directories is excluded
func (e *Excluder) Excluded(relPath string) bool {
	ok, err := e.matcher.MatchesOrParentMatches(filepath.FromSlash(relPath))
	return err == nil && ok
}

// excluderFor builds the excluder of a pattern set
func excluderFor(set PatternSet) (*Excluder, error) {
	return NewExcluder(set.excludeDirs(), set.ExcludeGlobs)
}
