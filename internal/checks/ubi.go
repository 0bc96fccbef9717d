package checks

import (
	"context"
	"log/slog"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
)

// DockerfileVariants are the container build files inspected besides the manifest
var DockerfileVariants = []string{"Containerfile", "build/Dockerfile", "docker/Dockerfile"}

// UBICheck flags outdated Red Hat UBI base images
type UBICheck struct{}

func (c *UBICheck) Key() string                      { return "ubi" }
func (c *UBICheck) Title() string                    { return "Outdated UBI base image" }
func (c *UBICheck) TrackingTitle() string            { return "UBI base image audit" }
func (c *UBICheck) Manifest() string                 { return "Dockerfile" }
func (c *UBICheck) Applies(_ github.Repository) bool { return true }
func (c *UBICheck) SlackWebhookEnv() string          { return "" }

func (c *UBICheck) Guidance() string {
	return "Rebase the image on `registry.access.redhat.com/ubi9` and pin a specific tag or digest."
}

func (c *UBICheck) Evaluate(ctx context.Context, env *Env, repo Repo) ([]scanner.Finding, error) {
	root, err := manifest(ctx, env, repo, c.Manifest())
	if err != nil {
		return nil, err
	}
	files := map[string][]byte{c.Manifest(): root}

	for _, path := range DockerfileVariants {
		content, err := fetchOptional(ctx, env, repo, path)
		if err != nil {
			slog.Warn("Failed to fetch container file", "repo", repo.FullName, "path", path, "error", err)
			continue
		}
		if content != nil {
			files[path] = content
		}
	}

	return scanner.ScanFiles(files, UBISet(), repo.DefaultBranch)
}
