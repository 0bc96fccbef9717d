package scanner

import (
	"context"
	"path"
	"regexp"
	"slices"
	"strings"
)

// DefaultExcludeDirs are never searched regardless of language
var DefaultExcludeDirs = []string{
	".git",
	"vendor",
	"test",
	"tests",
	"testdata",
	"node_modules",
	"third_party",
}

// Pattern is one ordered rule of a pattern set
type Pattern struct {
	Severity    Severity
	Label       string
	Description string
	Regex       *regexp.Regexp

	// Queries are the code search literals used in remote mode, one per regex alternative.
	// Every text the regex matches must contain at least one of them; none skips the search.
	Queries []string

	// SuppressIf drops a matching file when the same file also matches it
	SuppressIf *regexp.Regexp
}

// PatternSet is a fixed ordered list of patterns with the files they apply to
type PatternSet struct {
	Name       string
	Language   string
	Extensions []string
	// Filenames restricts matching to exact base names (e.g. Dockerfile), checked before Extensions
	Filenames    []string
	Patterns     []Pattern
	ExcludeDirs  []string
	ExcludeGlobs []string
}

// Target identifies the repository and branch to scan
type Target struct {
	FullName string
	Branch   string
	IsFork   bool
}

// Scanner evaluates a pattern set against a repository
type Scanner interface {
	Scan(ctx context.Context, target Target, set PatternSet) ([]Finding, error)
}

// accepts reports whether the file name is in scope for the set, ignoring exclusions
func (ps PatternSet) accepts(filePath string) bool {
	base := path.Base(filePath)
	if len(ps.Filenames) > 0 && slices.Contains(ps.Filenames, base) {
		return true
	}
	if len(ps.Extensions) == 0 {
		return len(ps.Filenames) == 0
	}
	ext := path.Ext(base)
	return slices.Contains(ps.Extensions, strings.ToLower(ext))
}

// excludeDirs merges the default directories with the set's own
func (ps PatternSet) excludeDirs() []string {
	dirs := slices.Clone(DefaultExcludeDirs)
	for _, d := range ps.ExcludeDirs {
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
