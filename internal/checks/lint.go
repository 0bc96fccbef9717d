package checks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
	"gopkg.in/yaml.v3"
)

// GolangciConfigs are the accepted golangci-lint config file names, in lookup order
var GolangciConfigs = []string{".golangci.yml", ".golangci.yaml"}

var makeLintTarget = regexp.MustCompile(`(?m)^lint\s*:`)

// LintCheck verifies golangci-lint configuration and the Makefile lint target
type LintCheck struct{}

func (c *LintCheck) Key() string                      { return "lint" }
func (c *LintCheck) Title() string                    { return "golangci-lint configuration needs attention" }
func (c *LintCheck) TrackingTitle() string            { return "Lint configuration audit" }
func (c *LintCheck) Manifest() string                 { return goModFile }
func (c *LintCheck) Applies(_ github.Repository) bool { return true }
func (c *LintCheck) SlackWebhookEnv() string          { return "" }

func (c *LintCheck) Guidance() string {
	return "Add a golangci-lint v2 configuration (`version: \"2\"`, see `golangci-lint migrate`) and a `lint` target in the Makefile."
}

type golangciConfig struct {
	Version string `yaml:"version"`
}

func (c *LintCheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	var findings []scanner.Finding
	finding := func(label string, sev scanner.Severity, file, desc string) {
		findings = append(findings, scanner.Finding{
			Pattern:     label,
			Severity:    sev,
			Description: desc,
			Files:       []string{file},
			Count:       1,
			Branch:      repo.DefaultBranch,
		})
	}

	var configPath string
	var config []byte
	for _, path := range GolangciConfigs {
		content, err := fetchOptional(ctx, env, repo, path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			configPath, config = path, content
			break
		}
	}

	if configPath == "" {
		finding("missing-golangci-config", scanner.SeverityInfo, GolangciConfigs[0], "no golangci-lint configuration found")
	} else {
		var cfg golangciConfig
		if err := yaml.Unmarshal(config, &cfg); err != nil {
			finding("invalid-golangci-config", scanner.SeverityMedium, configPath, fmt.Sprintf("golangci-lint configuration does not parse: %v", err))
		} else if cfg.Version != "2" {
			finding("golangci-v1-config", scanner.SeverityMedium, configPath, "golangci-lint configuration uses the v1 format")
		}
	}

	makefile, err := fetchOptional(ctx, env, repo, "Makefile")
	if err != nil {
		return nil, err
	}
	if makefile != nil && !makeLintTarget.Match(makefile) {
		finding("makefile-missing-lint-target", scanner.SeverityInfo, "Makefile", "Makefile has no lint target")
	}

	return findings, nil
}
