package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// TokenSource returns a token usable for HTTPS git authentication
type TokenSource func(ctx context.Context) (string, error)

// GitCloner maintains shallow single-branch clones under a persistent directory
type GitCloner struct {
	Dir     string
	BaseURL string
	Token   TokenSource
}

// NewGitCloner creates a cloner rooted at dir
func NewGitCloner(dir, baseURL string, token TokenSource) *GitCloner {
	if baseURL == "" {
		baseURL = "https://github.com"
	}
	return &GitCloner{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/"), Token: token}
}

// Sync clones the branch on first use and pulls it afterwards; a clone that cannot be
// fast-forwarded is removed and cloned again
func (c *GitCloner) Sync(ctx context.Context, fullName, branch string) (string, error) {
	dir := filepath.Join(c.Dir, filepath.FromSlash(fullName))

	auth, err := c.auth(ctx)
	if err != nil {
		return "", err
	}
	ref := plumbing.NewBranchReferenceName(branch)

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return dir, c.clone(ctx, dir, fullName, ref, auth)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open clone: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}

	slog.Debug("Pulling clone", "repo", fullName, "branch", branch)
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         1,
		Auth:          auth,
		Force:         true,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return dir, nil
	}

	slog.Warn("Pull failed, recloning", "repo", fullName, "error", err)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to remove stale clone: %w", err)
	}
	return dir, c.clone(ctx, dir, fullName, ref, auth)
}

func (c *GitCloner) clone(ctx context.Context, dir, fullName string, ref plumbing.ReferenceName, auth transport.AuthMethod) error {
	slog.Debug("Cloning repository", "repo", fullName, "ref", ref.String())
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           fmt.Sprintf("%s/%s.git", c.BaseURL, fullName),
		Auth:          auth,
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to clone %s: %w", fullName, err)
	}
	return nil
}

func (c *GitCloner) auth(ctx context.Context) (transport.AuthMethod, error) {
	if c.Token == nil {
		return nil, nil
	}
	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get git token: %w", err)
	}
	if token == "" {
		return nil, nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}, nil
}
