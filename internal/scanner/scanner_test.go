package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goTLSSet() PatternSet {
	return PatternSet{
		Name:         "tls-go",
		Language:     "Go",
		Extensions:   []string{".go"},
		ExcludeGlobs: []string{"*_test.go"},
		Patterns: []Pattern{
			{
				Severity:    SeverityCritical,
				Label:       "insecure-skip-verify",
				Description: "TLS certificate verification disabled",
				Regex:       regexp.MustCompile(`InsecureSkipVerify:\s*true`),
				Queries:     []string{"InsecureSkipVerify"},
			},
			{
				Severity:    SeverityMedium,
				Label:       "hardcoded-tls-version",
				Description: "Hardcoded TLS version bound",
				Regex:       regexp.MustCompile(`(MinVersion|MaxVersion):\s*tls\.VersionTLS1[0-3]`),
				Queries:     []string{"MinVersion", "MaxVersion"},
				SuppressIf:  regexp.MustCompile(`tlsprofile\.`),
			},
		},
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestScanDir_ExcludesVendor(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pkg/client.go":      "cfg := &tls.Config{InsecureSkipVerify: true}",
		"vendor/foo/tls.go":  "cfg := &tls.Config{InsecureSkipVerify: true}",
		"pkg/client_test.go": "cfg := &tls.Config{InsecureSkipVerify: true}",
		"README.md":          "InsecureSkipVerify: true",
	})

	findings, err := ScanDir(context.Background(), root, goTLSSet(), "main")
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, "insecure-skip-verify", findings[0].Pattern)
	assert.Equal(t, []string{"pkg/client.go"}, findings[0].Files)
	assert.Equal(t, 1, findings[0].Count)
	assert.Equal(t, "main", findings[0].Branch)
}

func TestScanDir_MatchOnlyInExcludedPaths(t *testing.T) {
	excluded := []string{
		"vendor/a/tls.go",
		"testdata/tls.go",
		"internal/test/helpers.go",
		"web/node_modules/x/tls.go",
		"third_party/lib/tls.go",
	}

	for _, rel := range excluded {
		t.Run(rel, func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{
				rel:           "InsecureSkipVerify: true",
				"pkg/ok.go":   "package pkg",
				"cmd/main.go": "package main",
			})

			findings, err := ScanDir(context.Background(), root, goTLSSet(), "main")
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}
}

func TestScanDir_SuppressesCentralizedConfig(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a/server.go": "cfg := tlsprofile.Apply(&tls.Config{MinVersion: tls.VersionTLS12})",
		"b/server.go": "cfg := &tls.Config{MinVersion: tls.VersionTLS12}",
	})

	findings, err := ScanDir(context.Background(), root, goTLSSet(), "main")
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, "hardcoded-tls-version", findings[0].Pattern)
	assert.Equal(t, []string{"b/server.go"}, findings[0].Files)
}

func TestScanDir_AggregatesFilesInPatternOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"z.go":     "InsecureSkipVerify: true\nMinVersion: tls.VersionTLS11",
		"a/b/c.go": "InsecureSkipVerify:   true",
	})

	findings, err := ScanDir(context.Background(), root, goTLSSet(), "dev")
	require.NoError(t, err)

	require.Len(t, findings, 2)
	assert.Equal(t, "insecure-skip-verify", findings[0].Pattern)
	assert.Equal(t, []string{"a/b/c.go", "z.go"}, findings[0].Files)
	assert.Equal(t, 2, findings[0].Count)
	assert.Equal(t, "hardcoded-tls-version", findings[1].Pattern)
}

func TestScanFiles_Filenames(t *testing.T) {
	set := PatternSet{
		Name:      "ubi",
		Filenames: []string{"Dockerfile"},
		Patterns: []Pattern{{
			Severity: SeverityHigh,
			Label:    "ubi8",
			Regex:    regexp.MustCompile(`(?mi)^FROM\s+\S*ubi8`),
		}},
	}

	findings, err := ScanFiles(map[string][]byte{
		"Dockerfile":         []byte("FROM registry.access.redhat.com/ubi8/ubi-minimal"),
		"docs/Dockerfile.md": []byte("FROM registry.access.redhat.com/ubi8/ubi-minimal"),
	}, set, "main")
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, []string{"Dockerfile"}, findings[0].Files)
}

func TestExcluder(t *testing.T) {
	ex, err := NewExcluder([]string{"vendor", "testdata"}, []string{"*_test.go", "test_*.py"})
	require.NoError(t, err)

	tests := []struct {
		path     string
		excluded bool
	}{
		{path: "vendor/a.go", excluded: true},
		{path: "a/vendor/b/c.go", excluded: true},
		{path: "pkg/testdata/x.go", excluded: true},
		{path: "pkg/x_test.go", excluded: true},
		{path: "x_test.go", excluded: true},
		{path: "py/test_client.py", excluded: true},
		{path: "pkg/vendors.go", excluded: false},
		{path: "pkg/client.go", excluded: false},
		{path: "py/client_test_utils.py", excluded: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.excluded, ex.Excluded(tt.path))
		})
	}
}

type fakeRemote struct {
	search  map[string][]string
	files   map[string]string
	tree    []string
	queries []string
	fetches int
}

func (f *fakeRemote) SearchCode(_ context.Context, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.search[query], nil
}

func (f *fakeRemote) FetchRawFile(_ context.Context, _, _, path string) ([]byte, error) {
	f.fetches++
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(content), nil
}

func (f *fakeRemote) ListTree(_ context.Context, _, _ string) ([]string, error) {
	return f.tree, nil
}

func TestRemoteScanner_VerifiesSearchHits(t *testing.T) {
	api := &fakeRemote{
		search: map[string][]string{
			`repo:org/svc "InsecureSkipVerify"`: {"pkg/client.go", "vendor/foo/tls.go", "pkg/comment.go"},
		},
		files: map[string]string{
			"pkg/client.go":     "InsecureSkipVerify: true",
			"vendor/foo/tls.go": "InsecureSkipVerify: true",
			"pkg/comment.go":    "// never set InsecureSkipVerify",
		},
	}

	s := NewRemoteScanner(api).WithLimit(time.Millisecond)
	findings, err := s.Scan(context.Background(), Target{FullName: "org/svc", Branch: "main"}, goTLSSet())
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, []string{"pkg/client.go"}, findings[0].Files)
	assert.Len(t, api.queries, 3)
	assert.Equal(t, 2, api.fetches, "excluded vendor path must not be fetched")
}

func TestRemoteScanner_MergesAlternativeQueries(t *testing.T) {
	api := &fakeRemote{
		search: map[string][]string{
			`repo:org/svc "MinVersion"`: {"pkg/a.go"},
			`repo:org/svc "MaxVersion"`: {"pkg/a.go", "pkg/b.go"},
		},
		files: map[string]string{
			"pkg/a.go": "MinVersion: tls.VersionTLS12",
			"pkg/b.go": "MaxVersion: tls.VersionTLS13",
		},
	}

	s := NewRemoteScanner(api).WithLimit(time.Millisecond)
	findings, err := s.Scan(context.Background(), Target{FullName: "org/svc", Branch: "main"}, goTLSSet())
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, "hardcoded-tls-version", findings[0].Pattern)
	assert.Equal(t, []string{"pkg/a.go", "pkg/b.go"}, findings[0].Files)
	assert.Equal(t, 2, findings[0].Count)
	assert.Equal(t, 2, api.fetches, "a path found by two alternatives is fetched once")
}

func TestRemoteScanner_ForkFallsBackToTree(t *testing.T) {
	api := &fakeRemote{
		tree: []string{"main.go", "vendor/x/tls.go", "docs/README.md"},
		files: map[string]string{
			"main.go":         "InsecureSkipVerify: true",
			"vendor/x/tls.go": "InsecureSkipVerify: true",
		},
	}
	s := NewRemoteScanner(api).WithLimit(time.Millisecond)

	findings, err := s.Scan(context.Background(), Target{FullName: "org/fork", Branch: "main", IsFork: true}, goTLSSet())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"main.go"}, findings[0].Files)

	t.Run("non-fork does not walk the tree", func(t *testing.T) {
		findings, err := s.Scan(context.Background(), Target{FullName: "org/fork", Branch: "main"}, goTLSSet())
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}

func TestFindingJSON_FilesCommaJoined(t *testing.T) {
	f := Finding{
		Pattern:     "insecure-skip-verify",
		Severity:    SeverityCritical,
		Description: "TLS certificate verification disabled",
		Files:       []string{"a.go", "b/c.go"},
		Count:       2,
		Branch:      "main",
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pattern":"insecure-skip-verify","severity":"CRITICAL","description":"TLS certificate verification disabled","files":"a.go,b/c.go","count":2,"branch":"main"}`, string(data))

	var decoded Finding
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, f, decoded)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityInfo, ParseSeverity(" INFO "))
	assert.Equal(t, Severity(0), ParseSeverity("warning"))
	assert.Equal(t, SeverityHigh, HighestSeverity([]Finding{{Severity: SeverityInfo}, {Severity: SeverityHigh}}))
	assert.Equal(t, Severity(0), HighestSeverity(nil))
}
