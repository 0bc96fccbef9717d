// Package checks defines the audits the pipeline can run. Each check supplies its manifest,
// its evaluation and the issue titles that identify it on GitHub.
package checks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
)

// FileFetcher downloads a single file from a repository branch
type FileFetcher interface {
	FetchRawFile(ctx context.Context, fullName, branch, path string) ([]byte, error)
}

// Env carries the run-wide collaborators and options checks evaluate with
type Env struct {
	Scanner  scanner.Scanner
	Files    FileFetcher
	Releases *GoReleases
	Proxy    *ModuleProxy

	// CheckMinor compares full versions instead of major.minor lines
	CheckMinor bool
	// MinVersion overrides the minimum acceptable dependency version
	MinVersion string
	// CentralizedSymbols marks files that delegate TLS settings to a shared package
	CentralizedSymbols *regexp.Regexp
}

// Repo is a repository that passed classification
type Repo struct {
	github.Repository
	// Manifest holds the manifest contents fetched during classification, if any
	Manifest []byte
}

// Target returns the scanner target for the default branch
func (r Repo) Target() scanner.Target {
	return scanner.Target{FullName: r.FullName, Branch: r.DefaultBranch, IsFork: r.Fork}
}

// Check is one audit
type Check interface {
	Key() string
	// Title is the per-repository issue title; it never changes between runs
	Title() string
	TrackingTitle() string
	// Manifest is the file whose absence excludes a repository, or ""
	Manifest() string
	Applies(repo github.Repository) bool
	Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error)
	// Guidance is appended to per-repository issue bodies
	Guidance() string
	// SlackWebhookEnv names the environment variable holding the check's webhook, or ""
	SlackWebhookEnv() string
}

// All returns every check in display order
func All() []Check {
	return []Check{
		&TLSCheck{},
		&GomockCheck{},
		&XCryptoCheck{},
		&GoVersionCheck{},
		&UBICheck{},
		&LintCheck{},
	}
}

// Keys lists the check keys
func Keys() []string {
	var keys []string
	for _, c := range All() {
		keys = append(keys, c.Key())
	}
	return keys
}

// Lookup finds a check by key
func Lookup(key string) (Check, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, c := range All() {
		if c.Key() == key {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown check %q (available: %s)", key, strings.Join(Keys(), ", "))
}

// Manifests lists the distinct manifests used by any check
func Manifests() []string {
	var manifests []string
	for _, c := range All() {
		if m := c.Manifest(); m != "" && !slices.Contains(manifests, m) {
			manifests = append(manifests, m)
		}
	}
	return manifests
}

// manifest returns the repository manifest, fetching it when classification did not
func manifest(ctx context.Context, env *Env, repo Repo, path string) ([]byte, error) {
	if repo.Manifest != nil {
		return repo.Manifest, nil
	}
	return env.Files.FetchRawFile(ctx, repo.FullName, repo.DefaultBranch, path)
}

// fetchOptional fetches a file, treating a missing file as nil content
func fetchOptional(ctx context.Context, env *Env, repo Repo, path string) ([]byte, error) {
	content, err := env.Files.FetchRawFile(ctx, repo.FullName, repo.DefaultBranch, path)
	if errors.Is(err, github.ErrFileNotFound) {
		return nil, nil
	}
	return content, err
}
