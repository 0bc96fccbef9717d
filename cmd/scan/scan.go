// Package scan implements the scan command that runs one check across the configured organizations.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/checks"
	"github.com/alan/repo-auditor/internal/commands"
	"github.com/alan/repo-auditor/internal/config"
	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/issues"
	"github.com/alan/repo-auditor/internal/notify"
	"github.com/alan/repo-auditor/internal/pipeline"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/spf13/cobra"
)

type scanFlags struct {
	createIssues bool
	checkMinor   bool
	noTracking   bool
	force        bool
	clearCache   bool
	includeForks bool
	mode         string
	orgs         []string
	minVersion   string
	days         int
	parallel     int
	trackingRepo string
}

// NewScanCmd creates and returns the scan command
func NewScanCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error), saveConfig func(string, *cmd.Config) error) *cobra.Command {
	flags := &scanFlags{}

	cb := &commands.CommandBuilder{
		Use:   "scan <check>",
		Short: "Run a check across all repositories of the configured organizations",
		Long: fmt.Sprintf(`Scan enumerates every repository of each configured organization, skips forks,
abandoned repositories and repositories without the check's manifest, evaluates the
check and writes a Markdown report.

Available checks: %s

Results are cached for results_ttl (default 6h); use --force to ignore the cache.
With --create-issues a stable per-repository issue is opened, updated, reopened or
closed to match the findings. Comment "closed" on an issue to keep it closed.`, strings.Join(checks.Keys(), ", ")),
		MinArgs: 1,
		MaxArgs: 1,
		ExampleUsage: []string{
			"repo-auditor scan tls",
			"repo-auditor scan goversion --org acme --create-issues",
			"repo-auditor scan xcrypto --version v0.31.0 --force",
			"repo-auditor scan ubi --mode clone --parallel 4",
		},
	}

	scanCmd := cb.BuildCommand(func(cobraCmd *cobra.Command, args []string) error {
		return runScan(cobraCmd.Context(), *globalConfigFile, loadConfig, saveConfig, args[0], flags)
	})
	addScanFlags(scanCmd, flags)

	return scanCmd
}

// addScanFlags adds all flags to the scan command
func addScanFlags(scanCmd *cobra.Command, flags *scanFlags) {
	scanCmd.Flags().BoolVar(&flags.createIssues, "create-issues", false, "Create, update and close per-repository issues")
	scanCmd.Flags().BoolVar(&flags.checkMinor, "check-minor", false, "Compare full versions instead of major.minor only (goversion)")
	scanCmd.Flags().BoolVar(&flags.noTracking, "no-tracking", false, "Do not sync the tracking issue")
	scanCmd.Flags().BoolVar(&flags.force, "force", false, "Ignore cached results")
	scanCmd.Flags().BoolVar(&flags.clearCache, "clear-cache", false, "Clear classification sets and cached results before scanning")
	scanCmd.Flags().BoolVar(&flags.includeForks, "include-forks", false, "Scan forks instead of skipping them")
	scanCmd.Flags().StringVar(&flags.mode, "mode", "", "Content access mode: api or clone (default from config, else api)")
	scanCmd.Flags().StringArrayVar(&flags.orgs, "org", nil, "Organization to scan (repeatable, overrides config)")
	scanCmd.Flags().StringVar(&flags.minVersion, "version", "", "Minimum acceptable module version (xcrypto; default latest from the module proxy)")
	scanCmd.Flags().IntVar(&flags.days, "days", 0, "Days without commits after which a repository is abandoned (default 180)")
	scanCmd.Flags().IntVar(&flags.parallel, "parallel", 0, "Repositories processed concurrently per organization (default 1)")
	scanCmd.Flags().StringVar(&flags.trackingRepo, "tracking-repo", "", "Repository holding the tracking issue (owner/name)")
}

// applyScanFlags overrides config values with any provided flags
func applyScanFlags(config *cmd.Config, flags *scanFlags) {
	if len(flags.orgs) > 0 {
		config.Orgs = flags.orgs
	}
	if flags.mode != "" {
		config.Mode = cmd.Mode(flags.mode)
	}
	if flags.days > 0 {
		config.AbandonedDays = flags.days
	}
	if flags.parallel > 0 {
		config.Parallel = flags.parallel
	}
	if flags.trackingRepo != "" {
		config.TrackingRepo = flags.trackingRepo
	}
}

func runScan(ctx context.Context, configFile string, loadConfig func(string) (*cmd.Config, error), saveConfig func(string, *cmd.Config) error, checkName string, flags *scanFlags) error {
	check, err := commands.ParseCheckArg([]string{checkName})
	if err != nil {
		return err
	}

	bc := &commands.BaseCommand{ConfigFile: &configFile, LoadConfig: loadConfig, SaveConfig: saveConfig}
	if err := bc.Init(ctx); err != nil {
		return err
	}

	cfg := bc.Config
	applyScanFlags(cfg, flags)
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	var centralized *regexp.Regexp
	if cfg.TLS.CentralizedSymbols != "" {
		centralized = regexp.MustCompile(cfg.TLS.CentralizedSymbols)
	}

	stores, err := commands.OpenStores(bc.Context, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	refs := issues.NewRefs(cfg.TrackedIssues)
	deps := pipeline.Deps{
		GitHub:   bc.GitHubClient,
		Scanner:  newScanner(cfg, bc.GitHubClient),
		Sets:     stores.Sets,
		Docs:     stores.Docs,
		Releases: checks.NewGoReleases(cfg.GoFeedURL),
		Proxy:    checks.NewModuleProxy(cfg.ModuleProxyURL),
		Refs:     refs,
		Notifier: slackNotifier,
	}
	opts := pipeline.Options{
		Check:              check,
		Orgs:               cfg.Orgs,
		CacheDir:           cfg.CacheDir,
		ReportDir:          cfg.ReportDir,
		TrackingRepo:       cfg.TrackingRepo,
		ResultsTTL:         cfg.ResultsTTL,
		AbandonedDays:      cfg.AbandonedDays,
		Blocklist:          cfg.Blocklist,
		Allowlist:          cfg.Allowlist,
		IncludeForks:       flags.includeForks,
		Parallel:           cfg.Parallel,
		CreateIssues:       flags.createIssues,
		NoTracking:         flags.noTracking,
		Force:              flags.force,
		ClearCache:         flags.clearCache,
		CheckMinor:         flags.checkMinor,
		MinVersion:         flags.minVersion,
		CentralizedSymbols: centralized,
	}

	fmt.Printf("🔍 Running %s across %s (%s mode)...\n", check.Key(), strings.Join(cfg.Orgs, ", "), cfg.Mode)

	summary, err := pipeline.Run(bc.Context, deps, opts)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	commands.DisplayScanSummary(check.Key(), summary)

	return bc.SaveRunState(check.Key(), refs.Snapshot(), time.Now())
}

func newScanner(cfg *cmd.Config, client *github.Client) scanner.Scanner {
	if cfg.Mode == cmd.ModeClone {
		cloner := scanner.NewGitCloner(filepath.Join(cfg.CacheDir, "clones"), webBaseURL(os.Getenv("GITHUB_BASE_URL")), client.Token)
		return scanner.NewLocalScanner(cloner)
	}
	return scanner.NewRemoteScanner(client).WithLimit(searchInterval(cfg.CodeSearchPerMinute))
}

// searchInterval spaces code searches to stay within perMinute
func searchInterval(perMinute int) time.Duration {
	if perMinute <= 0 {
		perMinute = scanner.DefaultCodeSearchPerMinute
	}
	return time.Minute / time.Duration(perMinute)
}

// webBaseURL derives the clone host from an Enterprise API root, or "" for github.com
func webBaseURL(apiURL string) string {
	if apiURL == "" {
		return ""
	}
	u := strings.TrimSuffix(apiURL, "/")
	return strings.TrimSuffix(u, "/api/v3")
}

func slackNotifier(envName string) pipeline.Notifier {
	if s := notify.FromEnv(envName); s != nil {
		return s
	}
	return nil
}
