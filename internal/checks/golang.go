package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/module"
)

const (
	// DefaultGoFeedURL lists current Go releases
	DefaultGoFeedURL = "https://go.dev/dl/?mode=json"
	// DefaultModuleProxyURL resolves module versions
	DefaultModuleProxyURL = "https://proxy.golang.org"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// GoReleases reads the stable Go releases from the download feed once per run
type GoReleases struct {
	url string

	mu     sync.Mutex
	stable []string
}

// NewGoReleases creates a feed reader; an empty url uses DefaultGoFeedURL
func NewGoReleases(url string) *GoReleases {
	if url == "" {
		url = DefaultGoFeedURL
	}
	return &GoReleases{url: url}
}

// Stable returns the stable release versions without the "go" prefix, newest first
func (g *GoReleases) Stable(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stable != nil {
		return g.stable, nil
	}

	var releases []struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	}
	if err := getJSON(ctx, g.url, &releases); err != nil {
		return nil, err
	}

	stable := []string{}
	for _, r := range releases {
		if r.Stable {
			stable = append(stable, strings.TrimPrefix(r.Version, "go"))
		}
	}
	if len(stable) == 0 {
		return nil, fmt.Errorf("no stable Go releases in %s", g.url)
	}

	slog.Debug("Loaded Go release feed", "stable", stable)
	g.stable = stable
	return stable, nil
}

// ModuleProxy resolves the latest version of modules, caching each answer
type ModuleProxy struct {
	url string

	mu     sync.Mutex
	latest map[string]string
}

// NewModuleProxy creates a proxy client; an empty url uses DefaultModuleProxyURL
func NewModuleProxy(url string) *ModuleProxy {
	if url == "" {
		url = DefaultModuleProxyURL
	}
	return &ModuleProxy{url: strings.TrimSuffix(url, "/"), latest: make(map[string]string)}
}

// Latest returns the version the proxy reports for <module>/@latest
func (p *ModuleProxy) Latest(ctx context.Context, modulePath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.latest[modulePath]; ok {
		return v, nil
	}

	escaped, err := module.EscapePath(modulePath)
	if err != nil {
		return "", fmt.Errorf("invalid module path %q: %w", modulePath, err)
	}

	var info struct {
		Version string `json:"Version"`
	}
	if err := getJSON(ctx, fmt.Sprintf("%s/%s/@latest", p.url, escaped), &info); err != nil {
		return "", err
	}
	if info.Version == "" {
		return "", fmt.Errorf("module proxy returned no version for %s", modulePath)
	}

	p.latest[modulePath] = info.Version
	return info.Version, nil
}
