package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v57/github"
)

func toIssue(issue *github.Issue) *Issue {
	return &Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		URL:    issue.GetHTMLURL(),
		State:  issue.GetState(),
	}
}

// FindIssueByTitle returns the first issue in the repository whose title equals title exactly,
// open or closed. Returns ErrIssueNotFound when none matches.
func (c *Client) FindIssueByTitle(ctx context.Context, fullName, title string) (*Issue, error) {
	query := fmt.Sprintf("repo:%s is:issue in:title %q", fullName, title)

	opts := &github.SearchOptions{
		Sort:  "created",
		Order: "asc",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		if err := c.search.Wait(ctx); err != nil {
			return nil, err
		}
		if err := c.throttle.Wait(ctx, ResourceSearch); err != nil {
			return nil, err
		}
		slog.Debug("GitHub API: Searching issues", "query", query, "page", opts.Page)
		result, resp, err := c.client.Search.Issues(ctx, query, opts)
		c.throttle.Observe(ResourceSearch, resp)
		if err != nil {
			return nil, fmt.Errorf("failed to search issues: %w", err)
		}

		for _, issue := range result.Issues {
			// Skip pull requests
			if issue.IsPullRequest() {
				continue
			}
			if strings.TrimSpace(issue.GetTitle()) == title {
				return toIssue(issue), nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return nil, ErrIssueNotFound
}

// GetIssue fetches an issue by number. Returns ErrIssueNotFound for a missing issue.
func (c *Client) GetIssue(ctx context.Context, fullName string, number int) (*Issue, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return nil, err
	}

	slog.Debug("GitHub API: Getting issue", "repo", fullName, "issue", number)
	issue, resp, err := c.client.Issues.Get(ctx, owner, repo, number)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s#%d: %w", fullName, number, ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to get issue %s#%d: %w", fullName, number, err)
	}
	if issue.IsPullRequest() {
		return nil, fmt.Errorf("%s#%d is a pull request: %w", fullName, number, ErrIssueNotFound)
	}

	return toIssue(issue), nil
}

// CreateIssue opens a new issue
func (c *Client) CreateIssue(ctx context.Context, fullName, title, body string) (*Issue, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return nil, err
	}

	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}

	slog.Debug("GitHub API: Creating issue", "repo", fullName, "title", title)
	issue, resp, err := c.client.Issues.Create(ctx, owner, repo, req)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue in %s: %w", fullName, err)
	}

	return toIssue(issue), nil
}

// EditIssue updates an issue body and, when state is non-empty, its state
func (c *Client) EditIssue(ctx context.Context, fullName string, number int, body *string, state string) (*Issue, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return nil, err
	}

	req := &github.IssueRequest{Body: body}
	if state != "" {
		req.State = github.String(state)
	}

	slog.Debug("GitHub API: Editing issue", "repo", fullName, "issue", number, "state", state)
	issue, resp, err := c.client.Issues.Edit(ctx, owner, repo, number, req)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to edit issue %s#%d: %w", fullName, number, err)
	}

	return toIssue(issue), nil
}
