// Package config implements the config command for initializing and updating repo-auditor configuration.
package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alan/repo-auditor/cmd"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

// configValues holds the values provided on the command line
type configValues struct {
	orgs         []string
	trackingRepo string
	cacheDir     string
	cacheBackend string
	reportDir    string
	mode         string
}

// gitDir is where organization auto-detection looks for a repository
var gitDir = "."

// NewConfigCmd creates and returns the config command
func NewConfigCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error), saveConfig func(string, *cmd.Config) error) *cobra.Command {
	values := &configValues{}

	cobraCmd := createConfigCommand(globalConfigFile, values, loadConfig, saveConfig)
	addConfigFlags(cobraCmd, values)

	return cobraCmd
}

// createConfigCommand creates the basic config command structure
func createConfigCommand(globalConfigFile *string, values *configValues, loadConfig func(string) (*cmd.Config, error), saveConfig func(string, *cmd.Config) error) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Initialize or update the repo-auditor.yaml configuration file",
		Long: `Config creates or updates repo-auditor.yaml with the organizations to audit,
the tracking repository and where caches and reports are kept.

When run from a git repository whose origin is on GitHub and no organization is
configured, the organization is detected from the remote.

Stored issue numbers and last run times are preserved on update.`,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigWithGitDetection(*globalConfigFile, values, loadConfig, saveConfig)
		},
	}
}

// addConfigFlags adds all flags to the config command
func addConfigFlags(cobraCmd *cobra.Command, values *configValues) {
	cobraCmd.Flags().StringArrayVarP(&values.orgs, "org", "o", nil, "GitHub organization to audit (repeatable, replaces the configured list)")
	cobraCmd.Flags().StringVarP(&values.trackingRepo, "tracking-repo", "t", "", "Repository holding the tracking issues (owner/name)")
	cobraCmd.Flags().StringVar(&values.cacheDir, "cache-dir", "", "Directory for caches and clones (default .repo-auditor)")
	cobraCmd.Flags().StringVar(&values.cacheBackend, "cache-backend", "", "Cache backend: file or sqlite")
	cobraCmd.Flags().StringVar(&values.reportDir, "report-dir", "", "Directory for Markdown reports (default reports)")
	cobraCmd.Flags().StringVar(&values.mode, "mode", "", "Content access mode: api or clone")
}

// runConfigWithGitDetection handles config creation with git auto-detection
func runConfigWithGitDetection(configFile string, values *configValues, loadConfig func(string) (*cmd.Config, error), saveConfig func(string, *cmd.Config) error) error {
	config, isUpdate := loadOrCreateConfig(configFile, loadConfig)

	if len(values.orgs) == 0 && len(config.Orgs) == 0 {
		if org, _, err := detectGitRemote(gitDir); err == nil {
			values.orgs = []string{org}
			slog.Info("Auto-detected organization", "org", org)
		}
	}

	if len(values.orgs) == 0 && len(config.Orgs) == 0 {
		return fmt.Errorf("organization is required (use --org flag or run from a git repository)")
	}
	if values.cacheBackend != "" {
		if _, ok := cmd.ParseCacheBackend(values.cacheBackend); !ok {
			return fmt.Errorf("invalid cache backend %q: expected file or sqlite", values.cacheBackend)
		}
	}
	if values.mode != "" {
		if _, ok := cmd.ParseMode(values.mode); !ok {
			return fmt.Errorf("invalid mode %q: expected api or clone", values.mode)
		}
	}

	updateConfigWithProvidedValues(config, values)

	if err := saveConfig(configFile, config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	displayConfigSuccess(configFile, config, isUpdate)
	return nil
}

// displayConfigSuccess shows the configuration success message
func displayConfigSuccess(configFile string, config *cmd.Config, isUpdate bool) {
	action := "initialized"
	if isUpdate {
		action = "updated"
	}
	fmt.Printf("Successfully %s %s with:\n", action, configFile)
	fmt.Printf("  Organizations: %s\n", strings.Join(config.Orgs, ", "))
	if config.TrackingRepo != "" {
		fmt.Printf("  Tracking Repository: %s\n", config.TrackingRepo)
	}
	if config.CacheDir != "" {
		fmt.Printf("  Cache Directory: %s\n", config.CacheDir)
	}
	if config.CacheBackend != "" {
		fmt.Printf("  Cache Backend: %s\n", config.CacheBackend)
	}
	if config.Mode != "" {
		fmt.Printf("  Mode: %s\n", config.Mode)
	}
}

// loadOrCreateConfig loads existing config or creates a new one
func loadOrCreateConfig(configFile string, loadConfig func(string) (*cmd.Config, error)) (*cmd.Config, bool) {
	if config, err := loadConfig(configFile); err == nil {
		return config, true
	}
	return &cmd.Config{}, false
}

// updateConfigWithProvidedValues updates config with any non-empty provided values
func updateConfigWithProvidedValues(config *cmd.Config, values *configValues) {
	if len(values.orgs) > 0 {
		config.Orgs = values.orgs
	}
	if values.trackingRepo != "" {
		config.TrackingRepo = values.trackingRepo
	}
	if values.cacheDir != "" {
		config.CacheDir = values.cacheDir
	}
	if values.cacheBackend != "" {
		config.CacheBackend = cmd.CacheBackend(values.cacheBackend)
	}
	if values.reportDir != "" {
		config.ReportDir = values.reportDir
	}
	if values.mode != "" {
		config.Mode = cmd.Mode(values.mode)
	}
}

// detectGitRemote reads the origin remote of the repository containing dir
func detectGitRemote(dir string) (string, string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", fmt.Errorf("not in a git repository: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", "", fmt.Errorf("failed to read origin remote: %w", err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", fmt.Errorf("origin remote has no URL")
	}
	return parseRemoteURL(urls[0])
}

var (
	sshRemote   = regexp.MustCompile(`git@github\.com:([^/]+)/([^/]+?)(?:\.git)?$`)
	httpsRemote = regexp.MustCompile(`https://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// parseRemoteURL extracts org and repo from various GitHub URL formats
func parseRemoteURL(remoteURL string) (string, string, error) {
	if matches := sshRemote.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}
	if matches := httpsRemote.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}
	return "", "", fmt.Errorf("unable to parse GitHub remote URL: %s", remoteURL)
}
