package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

// ListOrgRepos enumerates every non-archived repository of an organization
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]Repository, error) {
	repos, err := paginatedList(func(page int) ([]*github.Repository, *github.Response, error) {
		if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
			return nil, nil, err
		}
		opts := &github.RepositoryListByOrgOptions{
			Type: "all",
			ListOptions: github.ListOptions{
				PerPage: 100,
				Page:    page,
			},
		}
		slog.Debug("GitHub API: Listing organization repositories", "org", org, "page", page)
		items, resp, err := c.client.Repositories.ListByOrg(ctx, org, opts)
		c.throttle.Observe(ResourceCore, resp)
		return items, resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", org, err)
	}

	var result []Repository
	for _, r := range repos {
		if r.GetArchived() {
			continue
		}
		result = append(result, Repository{
			FullName:      r.GetFullName(),
			Owner:         r.GetOwner().GetLogin(),
			Name:          r.GetName(),
			DefaultBranch: r.GetDefaultBranch(),
			Language:      r.GetLanguage(),
			Fork:          r.GetFork(),
			Archived:      r.GetArchived(),
			PushedAt:      r.GetPushedAt().Time,
		})
	}
	return result, nil
}

// LatestCommitDate returns the committer date of the branch head
func (c *Client) LatestCommitDate(ctx context.Context, fullName, branch string) (time.Time, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return time.Time{}, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return time.Time{}, err
	}

	slog.Debug("GitHub API: Getting branch head commit", "repo", fullName, "branch", branch)
	commit, resp, err := c.client.Repositories.GetCommit(ctx, owner, repo, branch, nil)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get head commit of %s@%s: %w", fullName, branch, err)
	}

	return commit.GetCommit().GetCommitter().GetDate().Time, nil
}

// ListTree returns the path of every blob on the branch
func (c *Client) ListTree(ctx context.Context, fullName, branch string) ([]string, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return nil, err
	}

	slog.Debug("GitHub API: Getting recursive tree", "repo", fullName, "branch", branch)
	tree, resp, err := c.client.Git.GetTree(ctx, owner, repo, branch, true)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree of %s@%s: %w", fullName, branch, err)
	}
	if tree.GetTruncated() {
		slog.Warn("Repository tree truncated, scan is partial", "repo", fullName)
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

// FetchRawFile downloads a file from the branch. A missing file yields ErrFileNotFound.
func (c *Client) FetchRawFile(ctx context.Context, fullName, branch, path string) ([]byte, error) {
	if _, _, err := splitFullName(fullName); err != nil {
		return nil, err
	}

	fileURL := fmt.Sprintf("%s/%s/%s/%s", c.rawBaseURL, fullName, branch, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if token, err := c.token(ctx); err == nil && token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	slog.Debug("Fetching raw file", "repo", fullName, "branch", branch, "path", path)
	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s in %s@%s: %w", path, fullName, branch, ErrFileNotFound)
	default:
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return body, nil
}
