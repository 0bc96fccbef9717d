package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"
)

// SearchCode runs a code search and returns the matching file paths.
// Paths are deduplicated; the query usually carries its own repo: qualifier.
func (c *Client) SearchCode(ctx context.Context, query string) ([]string, error) {
	results, err := paginatedList(func(page int) ([]*github.CodeResult, *github.Response, error) {
		if err := c.throttle.Wait(ctx, ResourceCodeSearch); err != nil {
			return nil, nil, err
		}
		opts := &github.SearchOptions{
			ListOptions: github.ListOptions{
				PerPage: 100,
				Page:    page,
			},
		}
		slog.Debug("GitHub API: Searching code", "query", query, "page", page)
		result, resp, err := c.client.Search.Code(ctx, query, opts)
		c.throttle.Observe(ResourceCodeSearch, resp)
		if err != nil {
			return nil, resp, err
		}
		return result.CodeResults, resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search code: %w", err)
	}

	seen := make(map[string]bool, len(results))
	var paths []string
	for _, r := range results {
		p := r.GetPath()
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}
