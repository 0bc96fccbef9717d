// Package github wraps the GitHub REST API calls the auditor needs.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultRawBaseURL serves raw file contents for public GitHub
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// rawFetchTimeout bounds a single raw file download
const rawFetchTimeout = 30 * time.Second

// IssueSearchRate paces issue searches to the search API quota (30 per minute)
const IssueSearchRate = rate.Limit(30.0 / 60.0)

var (
	// ErrFileNotFound is returned when a raw file does not exist on the branch
	ErrFileNotFound = errors.New("file not found")

	// ErrIssueNotFound is returned when an issue lookup finds nothing
	ErrIssueNotFound = errors.New("issue not found")
)

// Client wraps the GitHub API client
type Client struct {
	client     *github.Client
	raw        *http.Client
	rawBaseURL string
	token      func(ctx context.Context) (string, error)
	throttle   *Throttler
	search     *rate.Limiter
}

// NewClient creates a new GitHub client with token authentication
func NewClient(ctx context.Context, token string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return newClient(github.NewClient(tc), func(context.Context) (string, error) {
		return token, nil
	})
}

// NewAppClient creates a GitHub client authenticated as a GitHub App installation.
// baseURL may be empty for github.com or point at an Enterprise API root.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string) (*Client, error) {
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	gh := github.NewClient(&http.Client{Transport: itr})
	if baseURL != "" {
		itr.BaseURL = strings.TrimSuffix(baseURL, "/")
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
	}

	return newClient(gh, itr.Token), nil
}

func newClient(gh *github.Client, token func(ctx context.Context) (string, error)) *Client {
	return &Client{
		client:     gh,
		raw:        &http.Client{Timeout: rawFetchTimeout},
		rawBaseURL: DefaultRawBaseURL,
		token:      token,
		throttle:   NewThrottler(5000, time.Minute),
		search:     rate.NewLimiter(IssueSearchRate, 30),
	}
}

// SetBaseURL points the REST client at a different API root
func (c *Client) SetBaseURL(apiURL string) error {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	c.client.BaseURL = u
	return nil
}

// SetRawBaseURL overrides the host serving raw file contents
func (c *Client) SetRawBaseURL(rawURL string) {
	if rawURL != "" {
		c.rawBaseURL = strings.TrimSuffix(rawURL, "/")
	}
}

// Token returns a token usable for git-over-HTTPS and raw downloads
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.token(ctx)
}

// splitFullName splits "owner/repo"
func splitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return owner, repo, nil
}

// isNotFound reports whether err is a GitHub 404
func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
