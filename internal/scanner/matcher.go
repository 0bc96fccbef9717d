package scanner

import (
	"sort"
)

// matcher accumulates per-pattern file hits for one repository
type matcher struct {
	set      PatternSet
	excluder *Excluder
	hits     []map[string]bool
}

func newMatcher(set PatternSet) (*matcher, error) {
	ex, err := excluderFor(set)
	if err != nil {
		return nil, err
	}
	hits := make([]map[string]bool, len(set.Patterns))
	for i := range hits {
		hits[i] = make(map[string]bool)
	}
	return &matcher{set: set, excluder: ex, hits: hits}, nil
}

// candidate reports whether a path is in scope and not excluded
func (m *matcher) candidate(relPath string) bool {
	return m.set.accepts(relPath) && !m.excluder.Excluded(relPath)
}

// add evaluates every pattern against the file
func (m *matcher) add(relPath string, content []byte) {
	for i := range m.set.Patterns {
		m.addFor(i, relPath, content)
	}
}

// addFor evaluates a single pattern against the file
func (m *matcher) addFor(i int, relPath string, content []byte) {
	if !m.candidate(relPath) {
		return
	}
	p := m.set.Patterns[i]
	if p.Regex == nil || !p.Regex.Match(content) {
		return
	}
	if p.SuppressIf != nil && p.SuppressIf.Match(content) {
		return
	}
	m.hits[i][relPath] = true
}

// findings returns one finding per fired pattern, in pattern order
func (m *matcher) findings(branch string) []Finding {
	var findings []Finding
	for i, p := range m.set.Patterns {
		if len(m.hits[i]) == 0 {
			continue
		}
		files := make([]string, 0, len(m.hits[i]))
		for f := range m.hits[i] {
			files = append(files, f)
		}
		sort.Strings(files)

		findings = append(findings, Finding{
			Pattern:     p.Label,
			Severity:    p.Severity,
			Description: p.Description,
			Files:       files,
			Count:       len(files),
			Branch:      branch,
		})
	}
	return findings
}

// ScanFiles evaluates a set against in-memory file contents keyed by repository-relative path
func ScanFiles(files map[string][]byte, set PatternSet, branch string) ([]Finding, error) {
	m, err := newMatcher(set)
	if err != nil {
		return nil, err
	}
	for p, content := range files {
		m.add(p, content)
	}
	return m.findings(branch), nil
}
