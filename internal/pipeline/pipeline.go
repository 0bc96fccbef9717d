// Package pipeline runs one check across the configured organizations: enumerate,
// classify, consult the results cache, evaluate, sync issues and report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/alan/repo-auditor/internal/checks"
	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/issues"
	"github.com/alan/repo-auditor/internal/lock"
	"github.com/alan/repo-auditor/internal/report"
	"github.com/alan/repo-auditor/internal/results"
	"github.com/alan/repo-auditor/internal/scanner"
	"golang.org/x/sync/errgroup"
)

// GitHubAPI is everything the pipeline calls on GitHub
type GitHubAPI interface {
	ListOrgRepos(ctx context.Context, org string) ([]github.Repository, error)
	classify.API
	issues.API
}

// Notifier posts a run summary
type Notifier interface {
	Post(ctx context.Context, text string) error
}

// Deps are the collaborators of a run
type Deps struct {
	GitHub   GitHubAPI
	Scanner  scanner.Scanner
	Sets     classify.SetStore
	Docs     results.DocumentStore
	Releases *checks.GoReleases
	Proxy    *checks.ModuleProxy
	Refs     issues.RefStore
	// Notifier returns the notifier for a webhook env var name, or nil
	Notifier func(envName string) Notifier
	Now      func() time.Time
}

// Options control a run
type Options struct {
	Check        checks.Check
	Orgs         []string
	CacheDir     string
	ReportDir    string
	TrackingRepo string

	ResultsTTL    time.Duration
	AbandonedDays int
	Blocklist     []string
	Allowlist     []string
	IncludeForks  bool
	Parallel      int

	CreateIssues bool
	NoTracking   bool
	Force        bool
	ClearCache   bool

	CheckMinor         bool
	MinVersion         string
	CentralizedSymbols *regexp.Regexp
}

// Summary describes a finished run
type Summary struct {
	Scanned       int
	FromCache     int
	WithFindings  int
	NotApplicable int
	Failed        int
	Skipped       map[classify.Kind]int
	IssueActions  map[issues.Action]int
	IssueErrors   int
	ReportPath    string
	Tracking      *issues.Outcome
	Duration      time.Duration
}

type run struct {
	deps       Deps
	opts       Options
	check      checks.Check
	classifier *classify.Classifier
	results    *results.Cache
	env        *checks.Env
	issues     *issues.Manager
	report     *report.Report

	mu      sync.Mutex
	summary *Summary
}

// Run executes one check end to end. Per-repository failures are counted in the summary
// and never abort the run; enumeration failures and cancellation do.
func Run(ctx context.Context, deps Deps, opts Options) (*Summary, error) {
	if opts.Check == nil {
		return nil, fmt.Errorf("no check selected")
	}
	if len(opts.Orgs) == 0 {
		return nil, fmt.Errorf("no organizations to scan")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	start := deps.Now()
	key := opts.Check.Key()

	l, err := lock.Acquire(opts.CacheDir, "scan "+key)
	if err != nil {
		return nil, err
	}
	defer l.Release()

	cache := classify.NewCache(deps.Sets, opts.Check.Manifest())
	resultsCache, err := results.Open(deps.Docs, key, opts.ResultsTTL, opts.Force, start)
	if err != nil {
		return nil, err
	}

	if opts.ClearCache {
		slog.Info("Clearing caches", "check", key)
		if err := cache.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear classifications: %w", err)
		}
		if err := resultsCache.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear results: %w", err)
		}
	}

	classifier, err := classify.NewClassifier(cache, deps.GitHub, classify.Options{
		Manifest:      opts.Check.Manifest(),
		AbandonedDays: opts.AbandonedDays,
		Blocklist:     opts.Blocklist,
		Allowlist:     opts.Allowlist,
		IncludeForks:  opts.IncludeForks,
		Now:           deps.Now,
	})
	if err != nil {
		return nil, err
	}

	r := &run{
		deps:       deps,
		opts:       opts,
		check:      opts.Check,
		classifier: classifier,
		results:    resultsCache,
		env: &checks.Env{
			Scanner:            deps.Scanner,
			Files:              deps.GitHub,
			Releases:           deps.Releases,
			Proxy:              deps.Proxy,
			CheckMinor:         opts.CheckMinor,
			MinVersion:         opts.MinVersion,
			CentralizedSymbols: opts.CentralizedSymbols,
		},
		issues: issues.NewManager(deps.GitHub, deps.Refs),
		report: report.New(opts.Check.TrackingTitle(), opts.Orgs, start),
		summary: &Summary{
			Skipped:      make(map[classify.Kind]int),
			IssueActions: make(map[issues.Action]int),
		},
	}

	slog.Info("Starting scan", "check", key, "orgs", opts.Orgs, "cache_valid", resultsCache.IsValid(), "parallel", opts.Parallel)

	for _, org := range opts.Orgs {
		if err := r.scanOrg(ctx, org); err != nil {
			return r.summary, err
		}
	}

	if err := resultsCache.Save(); err != nil {
		slog.Warn("Failed to save results cache", "check", key, "error", err)
	}

	if opts.ReportDir != "" {
		path, err := r.report.WriteFile(opts.ReportDir, key)
		if err != nil {
			slog.Warn("Failed to write report", "error", err)
		} else {
			r.summary.ReportPath = path
		}
	}

	r.syncTracking(ctx)
	r.notify(ctx)

	r.summary.Duration = deps.Now().Sub(start)
	return r.summary, nil
}

func (r *run) scanOrg(ctx context.Context, org string) error {
	repos, err := r.deps.GitHub.ListOrgRepos(ctx, org)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s: %w", org, err)
	}
	slog.Info("Enumerated organization", "org", org, "repos", len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for _, repo := range repos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.processRepo(gctx, org, repo)
			return nil
		})
	}
	return g.Wait()
}

func (r *run) processRepo(ctx context.Context, org string, repo github.Repository) {
	name := repo.FullName
	logger := slog.With("repo", name, "check", r.check.Key())

	if !r.check.Applies(repo) {
		logger.Debug("Check does not apply", "language", repo.Language)
		r.count(func(s *Summary) { s.NotApplicable++ })
		return
	}

	class, err := r.classifier.Classify(ctx, repo)
	if err != nil {
		logger.Warn("Skipping repository", "error", err)
		r.report.Fail(org)
		r.count(func(s *Summary) { s.Failed++ })
		return
	}
	if class.Skip() {
		logger.Debug("Repository classified", "kind", class.Kind, "cached", class.Cached)
		r.report.Skip(org, name, class.Kind)
		r.count(func(s *Summary) { s.Skipped[class.Kind]++ })
		return
	}

	findings, cached := r.results.Get(name)
	if !cached {
		findings, err = r.check.Evaluate(ctx, r.env, checks.Repo{Repository: repo, Manifest: class.Manifest})
		if err != nil {
			logger.Warn("Check failed", "error", err)
			r.report.Fail(org)
			r.count(func(s *Summary) { s.Failed++ })
			return
		}
		r.results.Put(name, findings, repo.DefaultBranch, repo.Language)
	}

	row := report.Row{
		Repo:       name,
		Branch:     repo.DefaultBranch,
		Language:   repo.Language,
		LastCommit: class.LastCommit,
		Findings:   findings,
	}
	if row.LastCommit.IsZero() {
		row.LastCommit = repo.PushedAt
	}
	r.report.Add(org, row)

	r.count(func(s *Summary) {
		s.Scanned++
		if cached {
			s.FromCache++
		}
		if len(findings) > 0 {
			s.WithFindings++
		}
	})
	if len(findings) > 0 {
		logger.Info("Findings", "count", len(findings), "highest", scanner.HighestSeverity(findings), "cached", cached)
	}

	if r.opts.CreateIssues {
		r.syncRepoIssue(ctx, row)
	}
}

func (r *run) syncRepoIssue(ctx context.Context, row report.Row) {
	desired := issues.ShouldNotExist
	body := ""
	if len(row.Findings) > 0 {
		desired = issues.ShouldExist
		body = report.RepoIssueBody(r.check.Title(), r.check.Guidance(), row)
	}

	out, err := r.issues.Sync(ctx, row.Repo, r.check.Key(), r.check.Title(), desired, body)
	if err != nil {
		slog.Error("Failed to sync issue", "repo", row.Repo, "check", r.check.Key(), "error", err)
		r.count(func(s *Summary) { s.IssueErrors++ })
		return
	}
	if out.Action != issues.ActionNone {
		slog.Info("Issue synced", "repo", row.Repo, "action", out.Action, "issue", out.Number, "changed", out.Changed)
	}
	r.count(func(s *Summary) { s.IssueActions[out.Action]++ })
}

func (r *run) syncTracking(ctx context.Context) {
	if r.opts.NoTracking || r.opts.TrackingRepo == "" {
		return
	}

	desired := issues.ShouldNotExist
	if r.report.HasFindings() {
		desired = issues.ShouldExist
	}

	out, err := r.issues.Sync(ctx, r.opts.TrackingRepo, "tracking-"+r.check.Key(), r.check.TrackingTitle(), desired, r.report.TrackingBody())
	if err != nil {
		slog.Error("Failed to sync tracking issue", "repo", r.opts.TrackingRepo, "error", err)
		r.summary.IssueErrors++
		return
	}
	r.summary.Tracking = &out
}

func (r *run) notify(ctx context.Context) {
	if r.deps.Notifier == nil || !r.report.HasFindings() {
		return
	}
	n := r.deps.Notifier(r.check.SlackWebhookEnv())
	if n == nil {
		return
	}
	if err := n.Post(ctx, r.report.SlackText()); err != nil {
		slog.Warn("Failed to post to Slack", "check", r.check.Key(), "error", err)
		return
	}
	slog.Info("Posted summary to Slack", "check", r.check.Key())
}

func (r *run) count(update func(s *Summary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(r.summary)
}
