package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/github"
)

// BaseCommand provides common fields and initialization for all commands
type BaseCommand struct {
	ConfigFile   *string
	LoadConfig   func(string) (*cmd.Config, error)
	SaveConfig   func(string, *cmd.Config) error
	GitHubClient *github.Client
	Context      context.Context
	Config       *cmd.Config
}

// Load reads the configuration. A missing file yields an empty config so flags alone can drive a run.
func (bc *BaseCommand) Load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	bc.Context = ctx

	config, err := bc.LoadConfig(*bc.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "path", *bc.ConfigFile)
		config, err = &cmd.Config{}, nil
	}
	if err != nil {
		return err
	}
	bc.Config = config
	return nil
}

// Init loads the configuration and creates the GitHub client from the environment
func (bc *BaseCommand) Init(ctx context.Context) error {
	if err := bc.Load(ctx); err != nil {
		return err
	}

	client, err := NewGitHubClient(bc.Context, bc.Config.RawBaseURL)
	if err != nil {
		return err
	}
	bc.GitHubClient = client
	return nil
}

// NewGitHubClient authenticates with GITHUB_TOKEN, or as a GitHub App when
// GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_APP_KEY_PATH are set.
// GITHUB_BASE_URL points both at a GitHub Enterprise API root.
func NewGitHubClient(ctx context.Context, rawBaseURL string) (*github.Client, error) {
	baseURL := os.Getenv("GITHUB_BASE_URL")

	var client *github.Client
	if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
		app, err := appCredentials(appID)
		if err != nil {
			return nil, err
		}
		client, err = github.NewAppClient(app.appID, app.installationID, app.keyPath, baseURL)
		if err != nil {
			return nil, err
		}
		slog.Debug("Authenticated as GitHub App", "app_id", app.appID, "installation_id", app.installationID)
	} else {
		token, err := getGitHubToken()
		if err != nil {
			return nil, err
		}
		client = github.NewClient(ctx, token)
		if baseURL != "" {
			if err := client.SetBaseURL(baseURL); err != nil {
				return nil, err
			}
		}
	}

	client.SetRawBaseURL(rawBaseURL)
	return client, nil
}

type appAuth struct {
	appID          int64
	installationID int64
	keyPath        string
}

func appCredentials(appID string) (*appAuth, error) {
	id, err := strconv.ParseInt(appID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	installationID, err := strconv.ParseInt(os.Getenv("GITHUB_INSTALLATION_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GITHUB_INSTALLATION_ID must be set with GITHUB_APP_ID: %w", err)
	}
	keyPath := os.Getenv("GITHUB_APP_KEY_PATH")
	if keyPath == "" {
		return nil, fmt.Errorf("GITHUB_APP_KEY_PATH must be set with GITHUB_APP_ID")
	}
	return &appAuth{appID: id, installationID: installationID, keyPath: keyPath}, nil
}

// getGitHubToken retrieves and validates the GitHub token
func getGitHubToken() (string, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return "", fmt.Errorf("GITHUB_TOKEN environment variable is required (or GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_APP_KEY_PATH)")
	}
	return token, nil
}

// SaveConfigWithErrorHandling saves the config with standardized error handling
func (bc *BaseCommand) SaveConfigWithErrorHandling(config *cmd.Config) error {
	if err := bc.SaveConfig(*bc.ConfigFile, config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// SaveRunState writes issue numbers and the completion time of checkKey back to the
// config file. The file is reloaded first so flag overrides and defaults are not persisted.
func (bc *BaseCommand) SaveRunState(checkKey string, tracked map[string]int, finished time.Time) error {
	stored, err := bc.LoadConfig(*bc.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		stored, err = &cmd.Config{}, nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if len(tracked) > 0 {
		stored.TrackedIssues = tracked
	}
	if stored.LastRun == nil {
		stored.LastRun = make(map[string]time.Time)
	}
	stored.LastRun[checkKey] = finished.UTC()

	return bc.SaveConfigWithErrorHandling(stored)
}
