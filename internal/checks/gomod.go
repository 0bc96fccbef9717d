package checks

import (
	"context"
	"fmt"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/alan/repo-auditor/internal/version"
	"golang.org/x/mod/modfile"
)

const goModFile = "go.mod"

func parseGoMod(ctx context.Context, env *Env, repo Repo) (*modfile.File, error) {
	data, err := manifest(ctx, env, repo, goModFile)
	if err != nil {
		return nil, err
	}
	f, err := modfile.ParseLax(goModFile, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	return f, nil
}

// requirement returns the required version of modulePath, or "" when absent
func requirement(f *modfile.File, modulePath string) (string, bool) {
	for _, r := range f.Require {
		if r.Mod.Path == modulePath {
			return r.Mod.Version, r.Indirect
		}
	}
	return "", false
}

func goModFinding(repo Repo, label string, sev scanner.Severity, description string) []scanner.Finding {
	return []scanner.Finding{{
		Pattern:     label,
		Severity:    sev,
		Description: description,
		Files:       []string{goModFile},
		Count:       1,
		Branch:      repo.DefaultBranch,
	}}
}

// GomockCheck flags modules still requiring the archived github.com/golang/mock
type GomockCheck struct{}

func (c *GomockCheck) Key() string                      { return "gomock" }
func (c *GomockCheck) Title() string                    { return "Migrate from archived github.com/golang/mock to go.uber.org/mock" }
func (c *GomockCheck) TrackingTitle() string            { return "gomock migration tracker" }
func (c *GomockCheck) Manifest() string                 { return goModFile }
func (c *GomockCheck) Applies(_ github.Repository) bool { return true }
func (c *GomockCheck) SlackWebhookEnv() string          { return "" }

func (c *GomockCheck) Guidance() string {
	return "Replace the module with `go.uber.org/mock`, update imports and regenerate mocks with the matching `mockgen`."
}

func (c *GomockCheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	f, err := parseGoMod(ctx, env, repo)
	if err != nil {
		return nil, err
	}

	v, indirect := requirement(f, "github.com/golang/mock")
	if v == "" {
		return nil, nil
	}
	desc := fmt.Sprintf("requires github.com/golang/mock %s", v)
	if indirect {
		desc += " (indirect)"
	}
	return goModFinding(repo, "golang-mock", scanner.SeverityMedium, desc), nil
}

// XCryptoCheck flags golang.org/x/crypto below the minimum version
type XCryptoCheck struct{}

const xcryptoModule = "golang.org/x/crypto"

func (c *XCryptoCheck) Key() string                      { return "xcrypto" }
func (c *XCryptoCheck) Title() string                    { return "Outdated golang.org/x/crypto dependency" }
func (c *XCryptoCheck) TrackingTitle() string            { return "golang.org/x/crypto version audit" }
func (c *XCryptoCheck) Manifest() string                 { return goModFile }
func (c *XCryptoCheck) Applies(_ github.Repository) bool { return true }
func (c *XCryptoCheck) SlackWebhookEnv() string          { return "XCRYPTO_SLACK_WEBHOOK" }

func (c *XCryptoCheck) Guidance() string {
	return "Run `go get golang.org/x/crypto@latest && go mod tidy` to pick up the latest security fixes."
}

func (c *XCryptoCheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	f, err := parseGoMod(ctx, env, repo)
	if err != nil {
		return nil, err
	}

	current, indirect := requirement(f, xcryptoModule)
	if current == "" {
		return nil, nil
	}

	minimum := env.MinVersion
	if minimum == "" {
		if env.Proxy == nil {
			return nil, fmt.Errorf("no minimum version given and no module proxy configured")
		}
		if minimum, err = env.Proxy.Latest(ctx, xcryptoModule); err != nil {
			return nil, err
		}
	}

	if !version.IsNewer(minimum, current) {
		return nil, nil
	}

	desc := fmt.Sprintf("golang.org/x/crypto %s is older than %s", current, minimum)
	if version.IsPseudo(current) {
		desc += " (untagged pseudo-version)"
	}
	if indirect {
		desc += " (indirect)"
	}
	return goModFinding(repo, "outdated-x-crypto", scanner.SeverityHigh, desc), nil
}

// GoVersionCheck compares the go directive against the stable releases
type GoVersionCheck struct{}

func (c *GoVersionCheck) Key() string                      { return "goversion" }
func (c *GoVersionCheck) Title() string                    { return "Go version is out of date" }
func (c *GoVersionCheck) TrackingTitle() string            { return "Go version audit" }
func (c *GoVersionCheck) Manifest() string                 { return goModFile }
func (c *GoVersionCheck) Applies(_ github.Repository) bool { return true }
func (c *GoVersionCheck) SlackWebhookEnv() string          { return "" }

func (c *GoVersionCheck) Guidance() string {
	return "Update the `go` directive in go.mod (and the toolchain used in CI and container images) to a supported release."
}

func (c *GoVersionCheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	f, err := parseGoMod(ctx, env, repo)
	if err != nil {
		return nil, err
	}
	if f.Go == nil || f.Go.Version == "" {
		return goModFinding(repo, "missing-go-directive", scanner.SeverityInfo, "go.mod has no go directive"), nil
	}
	current := f.Go.Version

	if env.Releases == nil {
		return nil, fmt.Errorf("no Go release feed configured")
	}
	stable, err := env.Releases.Stable(ctx)
	if err != nil {
		return nil, err
	}

	// a point release on a line still in the feed is current unless patches are compared
	supported := version.InStableLine(current, stable)
	if supported && !env.CheckMinor {
		return nil, nil
	}

	recommended, outdated := version.Recommend(current, stable, !env.CheckMinor)
	if !outdated {
		return nil, nil
	}

	if !supported {
		desc := fmt.Sprintf("go %s is no longer supported; upgrade to %s (latest stable %s)", current, recommended, version.Latest(stable))
		return goModFinding(repo, "unsupported-go-version", scanner.SeverityHigh, desc), nil
	}
	desc := fmt.Sprintf("go %s is behind the latest patch of its release line; upgrade to %s", current, recommended)
	return goModFinding(repo, "outdated-go-version", scanner.SeverityMedium, desc), nil
}
