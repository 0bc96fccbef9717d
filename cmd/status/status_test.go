package status

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alan/repo-auditor/cmd"
	"github.com/alan/repo-auditor/internal/results"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusCmd(t *testing.T) {
	configFile := "repo-auditor.yaml"
	statusCmd := NewStatusCmd(&configFile, nil)

	assert.Equal(t, "status <check>", statusCmd.Use)
	assert.Equal(t, "Show cached results of a check", statusCmd.Short)
	assert.NotNil(t, statusCmd.Flags().Lookup("show-clean"))
	assert.Error(t, statusCmd.Args(statusCmd, nil))
}

func TestRunStatus(t *testing.T) {
	dir := t.TempDir()
	loadConfig := func(string) (*cmd.Config, error) {
		return &cmd.Config{CacheDir: dir, TrackedIssues: map[string]int{"acme/api#tls": 4}}, nil
	}

	t.Run("no cached results", func(t *testing.T) {
		assert.NoError(t, runStatus(context.Background(), "repo-auditor.yaml", loadConfig, "tls", false))
	})

	t.Run("unknown check", func(t *testing.T) {
		assert.Error(t, runStatus(context.Background(), "repo-auditor.yaml", loadConfig, "nope", false))
	})

	t.Run("with results", func(t *testing.T) {
		c, err := results.Open(results.NewFileStore(filepath.Join(dir, "results")), "tls", results.DefaultTTL, false, time.Now())
		require.NoError(t, err)
		c.Put("acme/api", []scanner.Finding{{Pattern: "insecure-skip-verify", Severity: scanner.SeverityCritical, Files: []string{"a.go", "b.go"}}}, "main", "Go")
		c.Put("acme/web", nil, "main", "Go")
		require.NoError(t, c.Save())

		assert.NoError(t, runStatus(context.Background(), "repo-auditor.yaml", loadConfig, "tls", true))
	})
}

func TestCountBySeverity(t *testing.T) {
	entries := map[string]results.Entry{
		"acme/api": {Findings: []scanner.Finding{{Severity: scanner.SeverityCritical}, {Severity: scanner.SeverityMedium}}},
		"acme/web": {Findings: []scanner.Finding{{Severity: scanner.SeverityCritical}}},
		"acme/cli": {},
	}

	counts := countBySeverity(entries)
	assert.Equal(t, 2, counts[scanner.SeverityCritical])
	assert.Equal(t, 1, counts[scanner.SeverityMedium])
	assert.Equal(t, 0, counts[scanner.SeverityHigh])
	assert.Equal(t, []string{"acme/api", "acme/cli", "acme/web"}, sortedNames(entries))
}

func TestFilesSummary(t *testing.T) {
	assert.Equal(t, "a.go", filesSummary(scanner.Finding{Files: []string{"a.go"}}))
	assert.Equal(t, "a.go +2 more", filesSummary(scanner.Finding{Files: []string{"a.go", "b.go", "c.go"}}))
}
