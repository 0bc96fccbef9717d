// Package status implements the status command for displaying a check's cached results.
package status

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/commands"
	"github.com/alan/repo-auditor/internal/config"
	"github.com/alan/repo-auditor/internal/issues"
	"github.com/alan/repo-auditor/internal/lock"
	"github.com/alan/repo-auditor/internal/results"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates and returns the status command
func NewStatusCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error)) *cobra.Command {
	var showClean bool

	cb := &commands.CommandBuilder{
		Use:   "status <check>",
		Short: "Show cached results of a check",
		Long: `Display the findings recorded by the last scan of a check, grouped by repository,
without calling GitHub. By default, hides repositories without findings.`,
		MinArgs: 1,
		MaxArgs: 1,
		ExampleUsage: []string{
			"repo-auditor status tls",
			"repo-auditor status goversion --show-clean",
		},
	}
	statusCmd := cb.BuildCommand(func(cobraCmd *cobra.Command, args []string) error {
		return runStatus(cobraCmd.Context(), *globalConfigFile, loadConfig, args[0], showClean)
	})

	statusCmd.Flags().BoolVar(&showClean, "show-clean", false, "Show repositories without findings")

	return statusCmd
}

func runStatus(ctx context.Context, configFile string, loadConfig func(string) (*cmd.Config, error), checkName string, showClean bool) error {
	check, err := commands.ParseCheckArg([]string{checkName})
	if err != nil {
		return err
	}

	bc := &commands.BaseCommand{ConfigFile: &configFile, LoadConfig: loadConfig}
	if err := bc.Load(ctx); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := bc.Config
	config.ApplyDefaults(cfg)

	stores, err := commands.OpenStores(bc.Context, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	displayLockOwner(cfg.CacheDir)

	doc, err := results.Read(stores.Docs, check.Key())
	if err != nil {
		return err
	}
	if doc == nil || len(doc.Repositories) == 0 {
		fmt.Printf("No cached results for %s.\n", check.Key())
		fmt.Printf("Run: %s scan %s\n", os.Args[0], check.Key())
		return nil
	}

	displayHeader(check.TrackingTitle(), doc, cfg, check.Key(), time.Now())

	names := sortedNames(doc.Repositories)
	shown := 0
	for _, name := range names {
		entry := doc.Repositories[name]
		if len(entry.Findings) == 0 && !showClean {
			continue
		}
		displayRepository(name, entry, cfg.TrackedIssues[issues.RefKey(name, check.Key())])
		shown++
	}
	if shown == 0 {
		fmt.Println("No repositories with findings.")
		fmt.Println("Use --show-clean to list clean repositories.")
	}

	fmt.Println()
	displayStatusSummary(doc.Repositories)
	return nil
}

// displayLockOwner warns when a scan currently holds the cache
func displayLockOwner(cacheDir string) {
	owner, err := lock.Read(cacheDir)
	if err != nil || owner == nil {
		return
	}
	fmt.Printf("⏳ %s in progress (PID %d, since %s)\n\n", owner.Command, owner.PID, owner.StartedAt.Format(time.RFC3339))
}

// displayHeader shows the check title and cache freshness
func displayHeader(title string, doc *results.Document, cfg *cmd.Config, checkKey string, now time.Time) {
	freshness := color.GreenString("valid")
	if now.Sub(doc.Timestamp) >= cfg.ResultsTTL {
		freshness = color.YellowString("expired, next scan rescans everything")
	}
	fmt.Printf("%s\n", color.New(color.Bold).Sprint(title))
	fmt.Printf("Results from %s (%s)\n", doc.Timestamp.Local().Format("2006-01-02 15:04"), freshness)
	if last, ok := cfg.LastRun[checkKey]; ok {
		fmt.Printf("Last completed run: %s\n", last.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

// displayRepository shows one repository and its findings
func displayRepository(name string, entry results.Entry, issueNumber int) {
	fmt.Printf("%s", name)
	if entry.Language != "" {
		fmt.Printf(" [%s]", entry.Language)
	}
	if issueNumber > 0 {
		fmt.Printf(" (issue #%d)", issueNumber)
	}
	fmt.Println()

	if len(entry.Findings) == 0 {
		fmt.Printf("  %s\n", color.GreenString("✅ clean"))
		return
	}

	findings := append([]scanner.Finding(nil), entry.Findings...)
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Severity < findings[j].Severity })
	for _, f := range findings {
		fmt.Printf("  %-8s %s: %s (%s)\n", severityColor(f.Severity).Sprint(f.Severity), f.Pattern, f.Description, filesSummary(f))
	}
}

// filesSummary names the first affected file and how many more there are
func filesSummary(f scanner.Finding) string {
	if len(f.Files) <= 1 {
		return f.FirstFile()
	}
	return fmt.Sprintf("%s +%d more", f.FirstFile(), len(f.Files)-1)
}

// severityColor returns the display color for a severity
func severityColor(s scanner.Severity) *color.Color {
	switch s {
	case scanner.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case scanner.SeverityHigh:
		return color.New(color.FgRed)
	case scanner.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// displayStatusSummary displays the summary statistics
func displayStatusSummary(entries map[string]results.Entry) {
	bySeverity := countBySeverity(entries)
	affected := 0
	for _, entry := range entries {
		if len(entry.Findings) > 0 {
			affected++
		}
	}

	fmt.Printf("Summary: %d repositories, %d with findings (%d critical, %d high, %d medium, %d info)\n",
		len(entries), affected,
		bySeverity[scanner.SeverityCritical], bySeverity[scanner.SeverityHigh],
		bySeverity[scanner.SeverityMedium], bySeverity[scanner.SeverityInfo])
}

// countBySeverity counts findings per severity across all repositories
func countBySeverity(entries map[string]results.Entry) map[scanner.Severity]int {
	counts := make(map[scanner.Severity]int)
	for _, entry := range entries {
		for _, f := range entry.Findings {
			counts[f.Severity]++
		}
	}
	return counts
}

// sortedNames returns repository names sorted alphabetically
func sortedNames(entries map[string]results.Entry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
