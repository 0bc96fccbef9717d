package report

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generated = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func finding(pattern string, sev scanner.Severity, files ...string) scanner.Finding {
	return scanner.Finding{Pattern: pattern, Severity: sev, Description: pattern + " found", Files: files, Count: len(files), Branch: "main"}
}

func sampleReport() *Report {
	r := New("TLS configuration audit", []string{"zeta", "alpha"}, generated)
	r.Add("alpha", Row{Repo: "alpha/old", Branch: "main", Language: "Go", LastCommit: generated.AddDate(0, -3, 0),
		Findings: []scanner.Finding{finding("min-version", scanner.SeverityMedium, "a.go")}})
	r.Add("alpha", Row{Repo: "alpha/new", Branch: "main", Language: "Go", LastCommit: generated.AddDate(0, 0, -1),
		Findings: []scanner.Finding{finding("skip-verify", scanner.SeverityCritical, "pkg/client.go", "pkg/server.go", "cmd/x.go")}})
	r.Add("zeta", Row{Repo: "zeta/clean", Branch: "master", LastCommit: generated})
	r.Skip("zeta", "zeta/fork", classify.KindFork)
	r.Skip("zeta", "zeta/fork2", classify.KindFork)
	r.Skip("alpha", "alpha/dead", classify.KindAbandoned)
	r.Fail("alpha")
	return r
}

func TestMarkdown_OrderAndSorting(t *testing.T) {
	md := sampleReport().Markdown()

	zeta := strings.Index(md, "## zeta")
	alpha := strings.Index(md, "## alpha")
	require.NotEqual(t, -1, zeta)
	require.NotEqual(t, -1, alpha)
	assert.Less(t, zeta, alpha, "organizations keep configured order")

	assert.Less(t, strings.Index(md, "alpha/new"), strings.Index(md, "alpha/old"), "most recent commit first")
	assert.Contains(t, md, "| [zeta/clean](https://github.com/zeta/clean) | master | - | 2025-06-01 | ✅ clean | - |")
	assert.Contains(t, md, "Skipped: 2 fork\n")
	assert.Contains(t, md, "Skipped: 1 abandoned, 1 failed\n")
}

func TestTrackingBody_GroupsBySeverity(t *testing.T) {
	body := sampleReport().TrackingBody()

	assert.NotContains(t, body, "## zeta", "organizations without findings are omitted")
	critical := strings.Index(body, "### CRITICAL (1)")
	medium := strings.Index(body, "### MEDIUM (1)")
	require.NotEqual(t, -1, critical)
	require.NotEqual(t, -1, medium)
	assert.Less(t, critical, medium)

	assert.Contains(t, body, "[`pkg/client.go`](https://github.com/alpha/new/blob/main/pkg/client.go) (+2 more)")
	assert.Contains(t, body, "[`a.go`](https://github.com/alpha/old/blob/main/a.go)\n")
}

func TestTrackingBody_StableAcrossRuns(t *testing.T) {
	first := sampleReport()
	later := sampleReport()
	later.Generated = generated.Add(26 * time.Hour)

	assert.Equal(t, first.TrackingBody(), later.TrackingBody())
	assert.NotContains(t, first.TrackingBody(), "2025-06-01")
}

func TestRepoIssueBody(t *testing.T) {
	row := Row{Repo: "acme/api", Branch: "dev", Findings: []scanner.Finding{
		finding("min-version", scanner.SeverityMedium, "b.go"),
		finding("skip-verify", scanner.SeverityCritical, "a.go"),
	}}
	row.Findings[0].Branch = "dev"
	row.Findings[1].Branch = "dev"

	body := RepoIssueBody("TLS configuration", "Use the shared TLS profile.", row)
	assert.Contains(t, body, "`acme/api` (branch `dev`)")
	assert.Less(t, strings.Index(body, "skip-verify"), strings.Index(body, "min-version"))
	assert.Contains(t, body, "https://github.com/acme/api/blob/dev/a.go")
	assert.Contains(t, body, "Use the shared TLS profile.")

	assert.Equal(t, body, RepoIssueBody("TLS configuration", "Use the shared TLS profile.", row), "body is deterministic")
}

func TestSlackTextAndTotals(t *testing.T) {
	r := sampleReport()
	scanned, affected := r.Totals()
	assert.Equal(t, 3, scanned)
	assert.Equal(t, 2, affected)
	assert.True(t, r.HasFindings())

	text := r.SlackText()
	assert.True(t, strings.HasPrefix(text, "*TLS configuration audit*: 2 of 3 scanned repositories have findings\n"))
	assert.Contains(t, text, "• alpha/new: skip-verify (3)")

	empty := New("x", nil, generated)
	assert.False(t, empty.HasFindings())
}

func TestConcurrentAdd(t *testing.T) {
	r := New("x", []string{"acme"}, generated)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add("acme", Row{Repo: "acme/r"})
		}()
	}
	wg.Wait()
	scanned, _ := r.Totals()
	assert.Equal(t, 50, scanned)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := sampleReport().WriteFile(dir, "tls")
	require.NoError(t, err)
	assert.Equal(t, "tls-2025-06-01.md", path[len(dir)+1:])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# TLS configuration audit\n"))
}
