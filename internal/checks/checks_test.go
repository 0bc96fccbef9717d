package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/alan/repo-auditor/internal/github"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles map[string]string

func (f fakeFiles) FetchRawFile(_ context.Context, fullName, _, path string) ([]byte, error) {
	content, ok := f[fullName+"/"+path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, github.ErrFileNotFound)
	}
	return []byte(content), nil
}

type recordingScanner struct {
	target scanner.Target
	set    scanner.PatternSet
}

func (r *recordingScanner) Scan(_ context.Context, target scanner.Target, set scanner.PatternSet) ([]scanner.Finding, error) {
	r.target, r.set = target, set
	return []scanner.Finding{{Pattern: "insecure-skip-verify"}}, nil
}

func repo(name string, manifest string) Repo {
	r := Repo{Repository: github.Repository{FullName: name, DefaultBranch: "main", Language: "Go"}}
	if manifest != "" {
		r.Manifest = []byte(manifest)
	}
	return r
}

func TestLookup(t *testing.T) {
	for _, key := range Keys() {
		c, err := Lookup(key)
		require.NoError(t, err)
		assert.Equal(t, key, c.Key())
		assert.NotEmpty(t, c.Title())
		assert.NotContains(t, c.Title(), "1.", "issue titles must not carry versions")
	}

	c, err := Lookup(" TLS ")
	require.NoError(t, err)
	assert.Equal(t, "tls", c.Key())

	_, err = Lookup("nope")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"go.mod", "Dockerfile"}, Manifests())
}

func TestTLSCheck(t *testing.T) {
	check := &TLSCheck{}
	assert.True(t, check.Applies(github.Repository{Language: "TypeScript"}))
	assert.False(t, check.Applies(github.Repository{Language: "Rust"}))

	rec := &recordingScanner{}
	r := repo("acme/api", "")
	r.Fork = true

	findings, err := check.Evaluate(context.Background(), &Env{Scanner: rec}, r)
	require.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, "tls-go", rec.set.Name)
	assert.Equal(t, scanner.Target{FullName: "acme/api", Branch: "main", IsFork: true}, rec.target)

	var suppressed int
	for _, p := range rec.set.Patterns {
		if p.SuppressIf != nil {
			suppressed++
			assert.Equal(t, DefaultCentralizedSymbols, p.SuppressIf.String())
		}
	}
	assert.Positive(t, suppressed)
}

func TestTLSSets_MatchKnownSnippets(t *testing.T) {
	centralized := regexp.MustCompile(DefaultCentralizedSymbols)
	tests := []struct {
		language string
		file     string
		content  string
		want     string
	}{
		{"Go", "a.go", "&tls.Config{InsecureSkipVerify: true}", "insecure-skip-verify"},
		{"Go", "a.go", "MinVersion: tls.VersionTLS10,", "legacy-tls-version"},
		{"Python", "a.py", "requests.get(url, verify=False)", "verify-false"},
		{"Python", "a.py", "ctx = ssl._create_unverified_context()", "unverified-context"},
		{"JavaScript", "a.js", "https.request({ rejectUnauthorized: false })", "reject-unauthorized-false"},
		{"TypeScript", "a.ts", "process.env.NODE_TLS_REJECT_UNAUTHORIZED = '0'", "node-tls-reject-unauthorized"},
		{"C++", "a.cc", "SSL_CTX_set_verify(ctx, SSL_VERIFY_NONE, nullptr);", "ssl-verify-none"},
		{"C++", "a.cc", "SSL_CTX_set_cipher_list(ctx, \"HIGH\");", "custom-cipher-suites"},
	}

	for _, tt := range tests {
		t.Run(tt.language+"/"+tt.want, func(t *testing.T) {
			set, ok := TLSSet(tt.language, centralized)
			require.True(t, ok)

			findings, err := scanner.ScanFiles(map[string][]byte{tt.file: []byte(tt.content)}, set, "main")
			require.NoError(t, err)

			var labels []string
			for _, f := range findings {
				labels = append(labels, f.Pattern)
			}
			assert.Contains(t, labels, tt.want)
		})
	}
}

func TestTLSSets_CentralizedSuppression(t *testing.T) {
	set, _ := TLSSet("Go", regexp.MustCompile(DefaultCentralizedSymbols))
	files := map[string][]byte{
		"shared.go": []byte("cfg := tlsprofile.Default()\ncfg.MinVersion = 0\nx := tls.Config{MinVersion: tls.VersionTLS12}"),
		"local.go":  []byte("x := tls.Config{MinVersion: tls.VersionTLS12}"),
		"x_test.go": []byte("x := tls.Config{MinVersion: tls.VersionTLS12}"),
	}

	findings, err := scanner.ScanFiles(files, set, "main")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "hardcoded-tls-version", findings[0].Pattern)
	assert.Equal(t, []string{"local.go"}, findings[0].Files)
}

func TestGomockCheck(t *testing.T) {
	check := &GomockCheck{}

	findings, err := check.Evaluate(context.Background(), &Env{}, repo("acme/api", "module x\n\ngo 1.21\n\nrequire github.com/golang/mock v1.6.0\n"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, scanner.SeverityMedium, findings[0].Severity)
	assert.Equal(t, []string{"go.mod"}, findings[0].Files)
	assert.Contains(t, findings[0].Description, "v1.6.0")

	findings, err = check.Evaluate(context.Background(), &Env{}, repo("acme/api", "module x\n\nrequire go.uber.org/mock v0.4.0\n"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestGomockCheck_FetchesManifestWhenMissing(t *testing.T) {
	env := &Env{Files: fakeFiles{"acme/api/go.mod": "module x\nrequire github.com/golang/mock v1.5.0 // indirect\n"}}

	findings, err := (&GomockCheck{}).Evaluate(context.Background(), env, repo("acme/api", ""))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "(indirect)")
}

func TestXCryptoCheck(t *testing.T) {
	gomod := "module x\n\nrequire golang.org/x/crypto v0.17.0\n"
	check := &XCryptoCheck{}
	assert.Equal(t, "XCRYPTO_SLACK_WEBHOOK", check.SlackWebhookEnv())

	t.Run("explicit minimum", func(t *testing.T) {
		findings, err := check.Evaluate(context.Background(), &Env{MinVersion: "v0.31.0"}, repo("acme/api", gomod))
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, scanner.SeverityHigh, findings[0].Severity)
		assert.Equal(t, "golang.org/x/crypto v0.17.0 is older than v0.31.0", findings[0].Description)

		findings, err = check.Evaluate(context.Background(), &Env{MinVersion: "v0.17.0"}, repo("acme/api", gomod))
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("pseudo-version is outdated", func(t *testing.T) {
		pseudo := "module x\n\nrequire golang.org/x/crypto v0.0.0-20220722155217-630584e8d5aa\n"
		findings, err := check.Evaluate(context.Background(), &Env{MinVersion: "v0.1.0"}, repo("acme/api", pseudo))
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Contains(t, findings[0].Description, "(untagged pseudo-version)")
	})

	t.Run("latest from proxy", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, "/golang.org/x/crypto/@latest", r.URL.Path)
			_, _ = w.Write([]byte(`{"Version":"v0.31.0","Time":"2024-12-11T18:00:00Z"}`))
		}))
		defer server.Close()

		env := &Env{Proxy: NewModuleProxy(server.URL)}
		for i := 0; i < 2; i++ {
			findings, err := check.Evaluate(context.Background(), env, repo("acme/api", gomod))
			require.NoError(t, err)
			assert.Len(t, findings, 1)
		}
		assert.Equal(t, 1, calls, "proxy answer is cached")
	})

	t.Run("module not required", func(t *testing.T) {
		findings, err := check.Evaluate(context.Background(), &Env{}, repo("acme/api", "module x\n"))
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}

func goFeed(t *testing.T, versions ...string) *GoReleases {
	t.Helper()
	body := "["
	for i, v := range versions {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"version":"go%s","stable":true}`, v)
	}
	body += `,{"version":"go1.24rc1","stable":false}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewGoReleases(server.URL)
}

func TestGoReleases_Stable(t *testing.T) {
	feed := goFeed(t, "1.23.4", "1.22.10")
	stable, err := feed.Stable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.23.4", "1.22.10"}, stable)
}

func TestGoVersionCheck(t *testing.T) {
	check := &GoVersionCheck{}

	tests := []struct {
		name       string
		goVersion  string
		stable     []string
		checkMinor bool
		wantLabel  string
		wantDesc   string
	}{
		{name: "unsupported line", goVersion: "1.19", stable: []string{"1.21", "1.22", "1.23"}, wantLabel: "unsupported-go-version", wantDesc: "upgrade to 1.21 (latest stable 1.23)"},
		{name: "current line", goVersion: "1.23", stable: []string{"1.23.4", "1.22.10"}},
		{name: "supported older line", goVersion: "1.22.1", stable: []string{"1.23.4", "1.22.10"}},
		{name: "recommended line is not flagged again", goVersion: "1.21", stable: []string{"1.21", "1.22", "1.23"}},
		{name: "older line patch with check-minor", goVersion: "1.22.1", stable: []string{"1.23.4", "1.22.10"}, checkMinor: true, wantLabel: "outdated-go-version", wantDesc: "upgrade to 1.22.10"},
		{name: "unsupported line with check-minor", goVersion: "1.19.3", stable: []string{"1.21.1", "1.22.0"}, checkMinor: true, wantLabel: "unsupported-go-version", wantDesc: "upgrade to 1.21.1"},
		{name: "patch ignored by default", goVersion: "1.23.0", stable: []string{"1.23.4", "1.22.10"}},
		{name: "patch compared with check-minor", goVersion: "1.23.0", stable: []string{"1.23.4", "1.22.10"}, checkMinor: true, wantLabel: "outdated-go-version", wantDesc: "upgrade to 1.23.4"},
		{name: "ahead", goVersion: "1.24", stable: []string{"1.23.4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Env{Releases: goFeed(t, tt.stable...), CheckMinor: tt.checkMinor}
			gomod := fmt.Sprintf("module x\n\ngo %s\n", tt.goVersion)

			findings, err := check.Evaluate(context.Background(), env, repo("acme/api", gomod))
			require.NoError(t, err)
			if tt.wantLabel == "" {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantLabel, findings[0].Pattern)
			assert.Contains(t, findings[0].Description, tt.wantDesc)
		})
	}

	t.Run("missing go directive", func(t *testing.T) {
		findings, err := check.Evaluate(context.Background(), &Env{}, repo("acme/api", "module x\n"))
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, scanner.SeverityInfo, findings[0].Severity)
	})
}

func TestUBICheck(t *testing.T) {
	env := &Env{Files: fakeFiles{
		"acme/img/Containerfile":     "FROM registry.access.redhat.com/ubi7/ubi:7.9\n",
		"acme/img/docker/Dockerfile": "FROM --platform=linux/amd64 registry.access.redhat.com/ubi8/ubi-minimal:latest AS build\n",
	}}
	r := repo("acme/img", "FROM golang:1.23 AS build\nFROM registry.access.redhat.com/ubi9/ubi-micro:9.4\n")

	findings, err := (&UBICheck{}).Evaluate(context.Background(), env, r)
	require.NoError(t, err)

	got := map[string][]string{}
	for _, f := range findings {
		got[f.Pattern] = f.Files
	}
	assert.Equal(t, map[string][]string{
		"ubi7-base-image": {"Containerfile"},
		"ubi8-base-image": {"docker/Dockerfile"},
		"ubi-latest-tag":  {"docker/Dockerfile"},
	}, got)
	assert.Equal(t, scanner.SeverityCritical, findings[0].Severity)
}

func TestLintCheck(t *testing.T) {
	check := &LintCheck{}

	tests := []struct {
		name   string
		files  fakeFiles
		labels []string
	}{
		{
			name:   "nothing configured",
			files:  fakeFiles{},
			labels: []string{"missing-golangci-config"},
		},
		{
			name: "v1 config and makefile without lint",
			files: fakeFiles{
				"acme/api/.golangci.yaml": "linters:\n  enable:\n    - govet\n",
				"acme/api/Makefile":       "build:\n\tgo build ./...\n",
			},
			labels: []string{"golangci-v1-config", "makefile-missing-lint-target"},
		},
		{
			name: "v2 config and lint target",
			files: fakeFiles{
				"acme/api/.golangci.yml": "version: \"2\"\nlinters:\n  default: standard\n",
				"acme/api/Makefile":      "lint:\n\tgolangci-lint run\n",
			},
		},
		{
			name: "unquoted version",
			files: fakeFiles{
				"acme/api/.golangci.yml": "version: 2\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := check.Evaluate(context.Background(), &Env{Files: tt.files}, repo("acme/api", "module x\n"))
			require.NoError(t, err)

			var labels []string
			for _, f := range findings {
				labels = append(labels, f.Pattern)
			}
			assert.Equal(t, tt.labels, labels)
		})
	}
}
