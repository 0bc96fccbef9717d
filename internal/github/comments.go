package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"
)

func toComment(comment *github.IssueComment) Comment {
	return Comment{
		ID:        comment.GetID(),
		Body:      comment.GetBody(),
		User:      comment.GetUser().GetLogin(),
		CreatedAt: comment.GetCreatedAt().Time,
		UpdatedAt: comment.GetUpdatedAt().Time,
	}
}

// ListIssueComments retrieves all comments for a specific issue, oldest first
func (c *Client) ListIssueComments(ctx context.Context, fullName string, issueNumber int) ([]Comment, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	comments, err := paginatedList(func(page int) ([]*github.IssueComment, *github.Response, error) {
		if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
			return nil, nil, err
		}
		opts := &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{
				PerPage: 100,
				Page:    page,
			},
		}
		slog.Debug("GitHub API: Listing issue comments", "repo", fullName, "issue", issueNumber, "page", page)
		items, resp, err := c.client.Issues.ListComments(ctx, owner, repo, issueNumber, opts)
		c.throttle.Observe(ResourceCore, resp)
		return items, resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list issue comments: %w", err)
	}

	result := make([]Comment, 0, len(comments))
	for _, comment := range comments {
		result = append(result, toComment(comment))
	}
	return result, nil
}

// CreateIssueComment creates a new comment on an issue
func (c *Client) CreateIssueComment(ctx context.Context, fullName string, issueNumber int, body string) (*Comment, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if err := c.throttle.Wait(ctx, ResourceCore); err != nil {
		return nil, err
	}

	commentInput := &github.IssueComment{
		Body: github.String(body),
	}

	slog.Debug("GitHub API: Creating issue comment", "repo", fullName, "issue", issueNumber)
	comment, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, issueNumber, commentInput)
	c.throttle.Observe(ResourceCore, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	result := toComment(comment)
	return &result, nil
}
