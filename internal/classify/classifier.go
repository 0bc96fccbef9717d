package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/moby/patternmatcher"
)

// DefaultAbandonedDays is the commit age after which a repository counts as abandoned
const DefaultAbandonedDays = 180

// API is the slice of the GitHub client classification needs
type API interface {
	LatestCommitDate(ctx context.Context, fullName, branch string) (time.Time, error)
	FetchRawFile(ctx context.Context, fullName, branch, path string) ([]byte, error)
}

// Options configures a Classifier
type Options struct {
	Manifest      string
	AbandonedDays int
	Blocklist     []string
	Allowlist     []string
	IncludeForks  bool
	Now           func() time.Time
}

// Result is the outcome of classifying one repository
type Result struct {
	// Kind is set when the repository must be skipped
	Kind Kind
	// Cached is true when Kind came from the store without a network call
	Cached bool
	// LastCommit is the head commit date when it was fetched
	LastCommit time.Time
	// Manifest holds the manifest contents when the check has one and it was fetched
	Manifest []byte
}

// Skip reports whether the repository is excluded
func (r Result) Skip() bool {
	return r.Kind != ""
}

// Classifier decides whether a repository is scanned, consulting the cache before
// each network call
type Classifier struct {
	cache     *Cache
	api       API
	opts      Options
	blocklist *patternmatcher.PatternMatcher
	allowlist *patternmatcher.PatternMatcher
}

// NewClassifier creates a classifier over cache
func NewClassifier(cache *Cache, api API, opts Options) (*Classifier, error) {
	if opts.AbandonedDays <= 0 {
		opts.AbandonedDays = DefaultAbandonedDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Classifier{cache: cache, api: api, opts: opts}

	var err error
	if c.blocklist, err = compileRepoPatterns(opts.Blocklist); err != nil {
		return nil, fmt.Errorf("invalid blocklist: %w", err)
	}
	if c.allowlist, err = compileRepoPatterns(opts.Allowlist); err != nil {
		return nil, fmt.Errorf("invalid allowlist: %w", err)
	}
	return c, nil
}

func compileRepoPatterns(patterns []string) (*patternmatcher.PatternMatcher, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	return patternmatcher.New(patterns)
}

// Classify runs fork, abandoned, no-manifest and blocklist checks in that order and stops
// at the first that applies. A non-404 manifest fetch failure is returned as an error and
// nothing is recorded.
func (c *Classifier) Classify(ctx context.Context, repo github.Repository) (Result, error) {
	name := repo.FullName

	// Forks
	if !c.opts.IncludeForks {
		cached, err := c.cache.IsClassified(name, KindFork)
		if err != nil {
			return Result{}, err
		}
		if cached {
			return Result{Kind: KindFork, Cached: true}, nil
		}
		if repo.Fork {
			c.record(name, KindFork)
			return Result{Kind: KindFork}, nil
		}
	}

	// Abandoned
	cached, err := c.cache.IsClassified(name, KindAbandoned)
	if err != nil {
		return Result{}, err
	}
	if cached {
		return Result{Kind: KindAbandoned, Cached: true}, nil
	}
	lastCommit, err := c.api.LatestCommitDate(ctx, name, repo.DefaultBranch)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get last commit: %w", err)
	}
	cutoff := c.opts.Now().AddDate(0, 0, -c.opts.AbandonedDays)
	if lastCommit.Before(cutoff) {
		c.record(name, KindAbandoned)
		return Result{Kind: KindAbandoned, LastCommit: lastCommit}, nil
	}
	result := Result{LastCommit: lastCommit}

	// Missing manifest
	if c.opts.Manifest != "" {
		cached, err := c.cache.IsClassified(name, KindNoManifest)
		if err != nil {
			return Result{}, err
		}
		if cached {
			result.Kind, result.Cached = KindNoManifest, true
			return result, nil
		}

		content, err := c.api.FetchRawFile(ctx, name, repo.DefaultBranch, c.opts.Manifest)
		if errors.Is(err, github.ErrFileNotFound) {
			c.record(name, KindNoManifest)
			result.Kind = KindNoManifest
			return result, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("failed to fetch %s: %w", c.opts.Manifest, err)
		}
		result.Manifest = content
	}

	if c.Blocked(name) {
		result.Kind = KindBlocklisted
	}
	return result, nil
}

// Blocked reports whether the repository is excluded by configuration alone
func (c *Classifier) Blocked(name string) bool {
	if matches(c.blocklist, name) {
		return true
	}
	return c.allowlist != nil && !matches(c.allowlist, name)
}

func (c *Classifier) record(repo string, kind Kind) {
	if err := c.cache.Record(repo, kind); err != nil {
		slog.Warn("Failed to record classification", "repo", repo, "kind", kind, "error", err)
		return
	}
	slog.Debug("Recorded classification", "repo", repo, "kind", kind)
}

func matches(pm *patternmatcher.PatternMatcher, name string) bool {
	if pm == nil {
		return false
	}
	ok, err := pm.MatchesOrParentMatches(name)
	return err == nil && ok
}
