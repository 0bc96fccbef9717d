// Package report renders scan results as Markdown for files, issues and Slack.
package report

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/alan/repo-auditor/internal/store"
)

// Row is one scanned repository
type Row struct {
	Repo       string
	Branch     string
	Language   string
	LastCommit time.Time
	Findings   []scanner.Finding
}

// Report accumulates rows per organization; safe for concurrent use
type Report struct {
	Title     string
	Generated time.Time

	mu      sync.Mutex
	orgs    []string
	rows    map[string][]Row
	skipped map[string]map[classify.Kind][]string
	errors  map[string]int
}

// New creates a report whose sections follow orgs
func New(title string, orgs []string, generated time.Time) *Report {
	return &Report{
		Title:     title,
		Generated: generated,
		orgs:      slices.Clone(orgs),
		rows:      make(map[string][]Row),
		skipped:   make(map[string]map[classify.Kind][]string),
		errors:    make(map[string]int),
	}
}

// Add records a scanned repository
func (r *Report) Add(org string, row Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOrg(org)
	r.rows[org] = append(r.rows[org], row)
}

// Skip records a repository excluded by classification
func (r *Report) Skip(org, repo string, kind classify.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOrg(org)
	if r.skipped[org] == nil {
		r.skipped[org] = make(map[classify.Kind][]string)
	}
	r.skipped[org][kind] = append(r.skipped[org][kind], repo)
}

// Fail records a repository that could not be processed
func (r *Report) Fail(org string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOrg(org)
	r.errors[org]++
}

func (r *Report) addOrg(org string) {
	if !slices.Contains(r.orgs, org) {
		r.orgs = append(r.orgs, org)
	}
}

// HasFindings reports whether any scanned repository has at least one finding
func (r *Report) HasFindings() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rows := range r.rows {
		for _, row := range rows {
			if len(row.Findings) > 0 {
				return true
			}
		}
	}
	return false
}

// Totals counts scanned repositories and those with findings
func (r *Report) Totals() (scanned, affected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rows := range r.rows {
		for _, row := range rows {
			scanned++
			if len(row.Findings) > 0 {
				affected++
			}
		}
	}
	return scanned, affected
}

// sortedRows returns the org's rows, most recent commit first. Caller holds mu.
func (r *Report) sortedRows(org string) []Row {
	rows := slices.Clone(r.rows[org])
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].LastCommit.Equal(rows[j].LastCommit) {
			return rows[i].LastCommit.After(rows[j].LastCommit)
		}
		return rows[i].Repo < rows[j].Repo
	})
	return rows
}

// BlobURL links the first file of a finding
func BlobURL(repo, branch, file string) string {
	return fmt.Sprintf("https://github.com/%s/blob/%s/%s", repo, branch, file)
}

// fileLink renders the first file of f as a link with a "(+N more)" suffix
func fileLink(repo string, f scanner.Finding) string {
	first := f.FirstFile()
	if first == "" {
		return "-"
	}
	link := fmt.Sprintf("[`%s`](%s)", first, BlobURL(repo, f.Branch, first))
	if extra := len(f.Files) - 1; extra > 0 {
		link += fmt.Sprintf(" (+%d more)", extra)
	}
	return link
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

// Markdown renders the full report
func (r *Report) Markdown() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "Generated %s\n\n", r.Generated.UTC().Format(time.RFC3339))

	for _, org := range r.orgs {
		fmt.Fprintf(&b, "## %s\n\n", org)

		rows := r.sortedRows(org)
		if len(rows) == 0 {
			b.WriteString("No repositories scanned.\n\n")
		} else {
			b.WriteString("| Repository | Branch | Language | Last commit | Highest | Findings |\n")
			b.WriteString("|---|---|---|---|---|---|\n")
			for _, row := range rows {
				highest := "✅ clean"
				if s := scanner.HighestSeverity(row.Findings); s != 0 {
					highest = s.String()
				}
				fmt.Fprintf(&b, "| [%s](https://github.com/%s) | %s | %s | %s | %s | %s |\n",
					row.Repo, row.Repo, row.Branch, orDash(row.Language), formatDate(row.LastCommit),
					highest, findingLabels(row.Findings))
			}
			b.WriteString("\n")
		}

		r.writeSkipped(&b, org)
	}

	return b.String()
}

func (r *Report) writeSkipped(b *strings.Builder, org string) {
	skipped := r.skipped[org]
	if len(skipped) == 0 && r.errors[org] == 0 {
		return
	}

	b.WriteString("Skipped: ")
	var parts []string
	for _, kind := range []classify.Kind{classify.KindFork, classify.KindAbandoned, classify.KindNoManifest, classify.KindBlocklisted} {
		if n := len(skipped[kind]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind))
		}
	}
	if n := r.errors[org]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString("\n\n")
}

func findingLabels(findings []scanner.Finding) string {
	if len(findings) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(findings))
	for _, f := range findings {
		labels = append(labels, fmt.Sprintf("%s (%d)", f.Pattern, f.Count))
	}
	return strings.Join(labels, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// TrackingBody renders the aggregated tracking issue, grouped by organization then severity
func (r *Report) TrackingBody() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	// identical findings must render an identical body
	fmt.Fprintf(&b, "Automated %s. Resolved rows disappear on the next scan.\n\n", strings.ToLower(r.Title))

	for _, org := range r.orgs {
		rows := r.sortedRows(org)

		bySeverity := make(map[scanner.Severity][]string)
		for _, row := range rows {
			for _, f := range row.Findings {
				line := fmt.Sprintf("- [ ] **%s** `%s`: %s %s", row.Repo, f.Pattern, f.Description, fileLink(row.Repo, f))
				bySeverity[f.Severity] = append(bySeverity[f.Severity], line)
			}
		}
		if len(bySeverity) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", org)
		for _, sev := range scanner.Severities {
			lines := bySeverity[sev]
			if len(lines) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s (%d)\n\n", sev, len(lines))
			for _, line := range lines {
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RepoIssueBody renders the per-repository issue for a check
func RepoIssueBody(checkTitle, guidance string, row Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The automated **%s** audit found the following in `%s` (branch `%s`).\n\n", checkTitle, row.Repo, row.Branch)

	b.WriteString("| Severity | Pattern | Description | Files |\n")
	b.WriteString("|---|---|---|---|\n")

	findings := slices.Clone(row.Findings)
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Severity < findings[j].Severity })
	for _, f := range findings {
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", f.Severity, f.Pattern, f.Description, fileLink(row.Repo, f))
	}

	if guidance != "" {
		fmt.Fprintf(&b, "\n%s\n", guidance)
	}
	fmt.Fprintf(&b, "\nThis issue is updated on every scan and closed automatically once the findings are gone. Comment `closed` to keep it closed.\n")
	return b.String()
}

// SlackText renders a short summary
func (r *Report) SlackText() string {
	scanned, affected := r.Totals()

	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*: %d of %d scanned repositories have findings\n", r.Title, affected, scanned)
	for _, org := range r.orgs {
		for _, row := range r.sortedRows(org) {
			if len(row.Findings) == 0 {
				continue
			}
			fmt.Fprintf(&b, "• %s: %s\n", row.Repo, findingLabels(row.Findings))
		}
	}
	return b.String()
}

// WriteFile saves the Markdown report as <dir>/<name>-<date>.md and returns the path
func (r *Report) WriteFile(dir, name string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", name, r.Generated.Format("2006-01-02")))
	if err := store.WriteFileAtomic(path, []byte(r.Markdown())); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
