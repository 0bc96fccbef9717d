package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCodeSearchPerMinute is the code-search quota of github.com
const DefaultCodeSearchPerMinute = 10

// RemoteAPI is the slice of the GitHub client the remote strategy needs
type RemoteAPI interface {
	SearchCode(ctx context.Context, query string) ([]string, error)
	FetchRawFile(ctx context.Context, fullName, branch, path string) ([]byte, error)
	ListTree(ctx context.Context, fullName, branch string) ([]string, error)
}

// RemoteScanner uses code search to locate candidate files and verifies each one by
// fetching its content. Forks, which code search mostly does not index, fall back to a
// tree walk when search finds nothing.
type RemoteScanner struct {
	api     RemoteAPI
	limiter *rate.Limiter
}

// NewRemoteScanner creates a remote scanner paced at DefaultCodeSearchPerMinute
func NewRemoteScanner(api RemoteAPI) *RemoteScanner {
	return &RemoteScanner{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultCodeSearchPerMinute), 1),
	}
}

// WithLimit paces code search at one call per every
func (s *RemoteScanner) WithLimit(every time.Duration) *RemoteScanner {
	s.limiter = rate.NewLimiter(rate.Every(every), 1)
	return s
}

// Scan implements Scanner
func (s *RemoteScanner) Scan(ctx context.Context, target Target, set PatternSet) ([]Finding, error) {
	m, err := newMatcher(set)
	if err != nil {
		return nil, err
	}

	fetched := make(map[string][]byte)
	fetch := func(path string) ([]byte, bool) {
		if content, ok := fetched[path]; ok {
			return content, content != nil
		}
		content, err := s.api.FetchRawFile(ctx, target.FullName, target.Branch, path)
		if err != nil {
			slog.Debug("Failed to verify file", "repo", target.FullName, "path", path, "error", err)
			fetched[path] = nil
			return nil, false
		}
		fetched[path] = content
		return content, true
	}

	searchHits := 0
	for i, p := range set.Patterns {
		// hits of every alternative are merged before verification
		seen := make(map[string]bool)
		for _, literal := range p.Queries {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			query := fmt.Sprintf("repo:%s %q", target.FullName, literal)
			paths, err := s.api.SearchCode(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("code search for %s failed: %w", p.Label, err)
			}
			searchHits += len(paths)

			for _, path := range paths {
				if seen[path] {
					continue
				}
				seen[path] = true
				if !m.candidate(path) {
					continue
				}
				if content, ok := fetch(path); ok {
					m.addFor(i, path, content)
				}
			}
		}
	}

	if searchHits == 0 && target.IsFork {
		slog.Info("Code search empty for fork, walking tree", "repo", target.FullName)
		if err := s.walkTree(ctx, target, m, fetch); err != nil {
			return nil, err
		}
	}

	return m.findings(target.Branch), nil
}

func (s *RemoteScanner) walkTree(ctx context.Context, target Target, m *matcher, fetch func(string) ([]byte, bool)) error {
	paths, err := s.api.ListTree(ctx, target.FullName, target.Branch)
	if err != nil {
		return fmt.Errorf("failed to list tree: %w", err)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.candidate(path) {
			continue
		}
		if content, ok := fetch(path); ok {
			m.add(path, content)
		}
	}
	return nil
}
