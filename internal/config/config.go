// Package config provides functions for loading, defaulting and saving repo-auditor configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/results"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/alan/repo-auditor/internal/store"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file used when --config is not given
const DefaultFile = "repo-auditor.yaml"

const (
	// DefaultCacheDir holds classification sets, results documents, clones and the lock
	DefaultCacheDir = ".repo-auditor"
	// DefaultReportDir receives the Markdown reports
	DefaultReportDir = "reports"
)

// ErrNoOrgs is returned when neither the config file nor flags name an organization
var ErrNoOrgs = errors.New("no organizations configured (set orgs in the config file or pass --org)")

// LoadConfig loads the configuration from the specified file
func LoadConfig(filename string) (*cmd.Config, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // Config filename is from command-line flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config cmd.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves the configuration to the specified file
func SaveConfig(filename string, config *cmd.Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := store.WriteFileAtomic(filename, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyDefaults fills unset fields with their defaults
func ApplyDefaults(config *cmd.Config) {
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}
	if config.CacheBackend == "" {
		config.CacheBackend = cmd.CacheBackendFile
	}
	if config.ReportDir == "" {
		config.ReportDir = DefaultReportDir
	}
	if config.ResultsTTL <= 0 {
		config.ResultsTTL = results.DefaultTTL
	}
	if config.AbandonedDays <= 0 {
		config.AbandonedDays = classify.DefaultAbandonedDays
	}
	if config.Parallel <= 0 {
		config.Parallel = 1
	}
	if config.CodeSearchPerMinute <= 0 {
		config.CodeSearchPerMinute = scanner.DefaultCodeSearchPerMinute
	}
	if config.Mode == "" {
		config.Mode = cmd.ModeAPI
	}
}

// Validate checks a defaulted configuration
func Validate(config *cmd.Config) error {
	if len(config.Orgs) == 0 {
		return ErrNoOrgs
	}
	for _, org := range config.Orgs {
		if org == "" || strings.Contains(org, "/") {
			return fmt.Errorf("invalid organization %q", org)
		}
	}
	if config.TrackingRepo != "" && strings.Count(config.TrackingRepo, "/") != 1 {
		return fmt.Errorf("invalid tracking_repo %q: expected owner/name", config.TrackingRepo)
	}
	if _, ok := cmd.ParseMode(string(config.Mode)); !ok {
		return fmt.Errorf("invalid mode %q: expected api or clone", config.Mode)
	}
	if _, ok := cmd.ParseCacheBackend(string(config.CacheBackend)); !ok {
		return fmt.Errorf("invalid cache_backend %q: expected file or sqlite", config.CacheBackend)
	}
	if config.TLS.CentralizedSymbols != "" {
		if _, err := regexp.Compile(config.TLS.CentralizedSymbols); err != nil {
			return fmt.Errorf("invalid tls.centralized_symbols: %w", err)
		}
	}
	return nil
}
