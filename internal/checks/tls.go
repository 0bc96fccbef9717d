package checks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
)

var defaultCentralized = regexp.MustCompile(DefaultCentralizedSymbols)

// TLSCheck scans source files for insecure or hardcoded TLS settings
type TLSCheck struct{}

func (c *TLSCheck) Key() string             { return "tls" }
func (c *TLSCheck) Title() string           { return "Insecure or hardcoded TLS configuration" }
func (c *TLSCheck) TrackingTitle() string   { return "TLS configuration audit" }
func (c *TLSCheck) Manifest() string        { return "" }
func (c *TLSCheck) SlackWebhookEnv() string { return "" }

func (c *TLSCheck) Guidance() string {
	return "Enable certificate verification and take TLS versions and cipher suites from the shared TLS profile instead of hardcoding them."
}

// Applies limits the scan to languages with a TLS pattern set
func (c *TLSCheck) Applies(repo github.Repository) bool {
	_, ok := TLSSet(repo.Language, nil)
	return ok
}

func (c *TLSCheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	centralized := env.CentralizedSymbols
	if centralized == nil {
		centralized = defaultCentralized
	}

	set, ok := TLSSet(repo.Language, centralized)
	if !ok {
		return nil, nil
	}
	if env.Scanner == nil {
		return nil, fmt.Errorf("no content scanner configured")
	}
	return env.Scanner.Scan(ctx, repo.Target(), set)
}
