// Package cache implements the cache command for inspecting and clearing persisted classifications and results.
package cache

import (
	"context"
	"fmt"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/checks"
	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/commands"
	"github.com/alan/repo-auditor/internal/config"
	"github.com/alan/repo-auditor/internal/lock"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates and returns the cache command with its list and clear subcommands
func NewCacheCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error)) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the classification and results caches",
		Long: `Cache manages the persisted state under cache_dir: the fork, abandoned and
no-manifest classification sets shared between runs, and the per-check results documents.`,
	}

	cacheCmd.AddCommand(newListCmd(globalConfigFile, loadConfig))
	cacheCmd.AddCommand(newClearCmd(globalConfigFile, loadConfig))
	return cacheCmd
}

func newListCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error)) *cobra.Command {
	var manifest string

	cb := &commands.CommandBuilder{
		Use:     "list <fork|abandoned|no-manifest>",
		Short:   "List repositories recorded under a classification",
		Long:    "List prints the repositories recorded under a classification, one per line.",
		MinArgs: 1,
		MaxArgs: 1,
		ExampleUsage: []string{
			"repo-auditor cache list fork",
			"repo-auditor cache list no-manifest --manifest Dockerfile",
		},
	}
	listCmd := cb.BuildCommand(func(cobraCmd *cobra.Command, args []string) error {
		kind, err := classify.ParseKind(args[0])
		if err != nil {
			return err
		}
		return runList(cobraCmd.Context(), *globalConfigFile, loadConfig, kind, manifest)
	})
	listCmd.Flags().StringVar(&manifest, "manifest", "", "Manifest whose no-manifest set to list (default: all)")
	return listCmd
}

func newClearCmd(globalConfigFile *string, loadConfig func(string) (*cmd.Config, error)) *cobra.Command {
	cb := &commands.CommandBuilder{
		Use:   "clear",
		Short: "Clear all classification sets and cached results",
		Long: `Clear empties every classification set and deletes every check's results
document, so the next scan re-classifies and rescans all repositories.`,
	}
	return cb.BuildCommand(func(cobraCmd *cobra.Command, _ []string) error {
		return runClear(cobraCmd.Context(), *globalConfigFile, loadConfig)
	})
}

func openStores(ctx context.Context, configFile string, loadConfig func(string) (*cmd.Config, error)) (*cmd.Config, *commands.Stores, error) {
	bc := &commands.BaseCommand{ConfigFile: &configFile, LoadConfig: loadConfig}
	if err := bc.Load(ctx); err != nil {
		return nil, nil, err
	}
	config.ApplyDefaults(bc.Config)

	stores, err := commands.OpenStores(bc.Context, bc.Config)
	if err != nil {
		return nil, nil, err
	}
	return bc.Config, stores, nil
}

func runList(ctx context.Context, configFile string, loadConfig func(string) (*cmd.Config, error), kind classify.Kind, manifest string) error {
	if kind == classify.KindBlocklisted {
		return fmt.Errorf("blocklisted repositories come from the blocklist and allowlist in the config file and are not cached")
	}

	_, stores, err := openStores(ctx, configFile, loadConfig)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	manifests := []string{manifest}
	if kind == classify.KindNoManifest && manifest == "" {
		manifests = checks.Manifests()
	}

	total := 0
	for _, m := range manifests {
		members, err := classify.NewCache(stores.Sets, m).Members(kind)
		if err != nil {
			return err
		}
		if kind == classify.KindNoManifest {
			fmt.Printf("# without %s (%d)\n", m, len(members))
		}
		for _, repo := range members {
			fmt.Println(repo)
		}
		total += len(members)
	}

	if total == 0 {
		fmt.Printf("No repositories classified as %s.\n", kind)
	}
	return nil
}

func runClear(ctx context.Context, configFile string, loadConfig func(string) (*cmd.Config, error)) error {
	cfg, stores, err := openStores(ctx, configFile, loadConfig)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	l, err := lock.Acquire(cfg.CacheDir, "cache clear")
	if err != nil {
		return err
	}
	defer l.Release()

	for _, m := range checks.Manifests() {
		if err := classify.NewCache(stores.Sets, m).Clear(); err != nil {
			return fmt.Errorf("failed to clear classifications: %w", err)
		}
	}
	for _, key := range checks.Keys() {
		if err := stores.Docs.Delete(key); err != nil {
			return fmt.Errorf("failed to clear %s results: %w", key, err)
		}
	}

	fmt.Printf("✅ Cleared classifications and results in %s\n", cfg.CacheDir)
	return nil
}
