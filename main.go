// package main is the entry point for the repo-auditor tool
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cachecmd "github.com/alan/repo-auditor/cmd/cache"
	configcmd "github.com/alan/repo-auditor/cmd/config"
	"github.com/alan/repo-auditor/cmd/scan"
	"github.com/alan/repo-auditor/cmd/status"
	"github.com/alan/repo-auditor/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var logLevel string
	var logFormat string

	rootCmd := &cobra.Command{
		Use:   "repo-auditor",
		Short: "Audit every repository of a GitHub organization for configuration and dependency hygiene",
		Long: `repo-auditor runs compliance checks (legacy TLS settings, outdated Go toolchains and
modules, deprecated base images, lint configuration) across all repositories of one or
more GitHub organizations, writes Markdown reports and keeps GitHub issues in sync
with the findings.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogger(logLevel, logFormat)
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "f", "text", "Log format (text, json)")

	// Create commands with access to the global config file
	rootCmd.AddCommand(scan.NewScanCmd(&configFile, config.LoadConfig, config.SaveConfig))
	rootCmd.AddCommand(cachecmd.NewCacheCmd(&configFile, config.LoadConfig))
	rootCmd.AddCommand(status.NewStatusCmd(&configFile, config.LoadConfig))
	rootCmd.AddCommand(configcmd.NewConfigCmd(&configFile, config.LoadConfig, config.SaveConfig))

	return rootCmd
}

func setupLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	slog.SetDefault(slog.New(handler))
}
