package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/issues"
	"github.com/alan/repo-auditor/internal/pipeline"
)

// formatScanSummary creates the human-readable end-of-run summary
func formatScanSummary(checkKey string, s *pipeline.Summary) string {
	var msg strings.Builder

	if s.Failed > 0 {
		msg.WriteString(fmt.Sprintf("⚠️  %s scan finished with %d failed repositories\n", checkKey, s.Failed))
	} else {
		msg.WriteString(fmt.Sprintf("✅ %s scan finished in %s\n", checkKey, s.Duration.Round(time.Second)))
	}
	msg.WriteString(fmt.Sprintf("   Scanned: %d (%d from cache), with findings: %d\n", s.Scanned, s.FromCache, s.WithFindings))

	if skipped := formatCounts(s.Skipped); skipped != "" {
		msg.WriteString(fmt.Sprintf("   Skipped: %s\n", skipped))
	}
	if s.NotApplicable > 0 {
		msg.WriteString(fmt.Sprintf("   Not applicable: %d\n", s.NotApplicable))
	}
	if actions := formatActions(s.IssueActions); actions != "" {
		msg.WriteString(fmt.Sprintf("   Issues: %s\n", actions))
	}
	if s.IssueErrors > 0 {
		msg.WriteString(fmt.Sprintf("❌ %d issue update(s) failed, see log\n", s.IssueErrors))
	}
	if s.Tracking != nil && s.Tracking.Number > 0 {
		msg.WriteString(fmt.Sprintf("📌 Tracking issue #%d (%s)\n", s.Tracking.Number, s.Tracking.Action))
	}
	if s.ReportPath != "" {
		msg.WriteString(fmt.Sprintf("📄 Report written to %s\n", s.ReportPath))
	}

	return msg.String()
}

// DisplayScanSummary prints the end-of-run summary
func DisplayScanSummary(checkKey string, s *pipeline.Summary) {
	fmt.Print(formatScanSummary(checkKey, s))
}

func formatCounts(counts map[classify.Kind]int) string {
	var parts []string
	for kind, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatActions(counts map[issues.Action]int) string {
	var parts []string
	for action, n := range counts {
		if n > 0 && action != issues.ActionNone {
			parts = append(parts, fmt.Sprintf("%d %s", n, action))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
