package commands

import (
	"testing"
	"time"

	"github.com/alan/repo-auditor/internal/classify"
	"github.com/alan/repo-auditor/internal/issues"
	"github.com/alan/repo-auditor/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestFormatScanSummary(t *testing.T) {
	tests := []struct {
		name            string
		summary         *pipeline.Summary
		wantContains    []string
		wantNotContains []string
	}{
		{
			name: "clean run",
			summary: &pipeline.Summary{
				Scanned:      12,
				FromCache:    4,
				WithFindings: 3,
				Duration:     2500 * time.Millisecond,
				Skipped:      map[classify.Kind]int{classify.KindFork: 2, classify.KindAbandoned: 1},
				IssueActions: map[issues.Action]int{issues.ActionCreate: 1, issues.ActionNone: 9},
				Tracking:     &issues.Outcome{Action: issues.ActionUpdate, Number: 7},
				ReportPath:   "reports/tls-2026-10-19.md",
			},
			wantContains: []string{
				"✅ tls scan finished",
				"Scanned: 12 (4 from cache), with findings: 3",
				"Skipped: 1 abandoned, 2 fork",
				"Issues: 1 create\n",
				"Tracking issue #7 (update)",
				"reports/tls-2026-10-19.md",
			},
			wantNotContains: []string{"none", "failed"},
		},
		{
			name: "failures",
			summary: &pipeline.Summary{
				Failed:      2,
				IssueErrors: 1,
				Skipped:     map[classify.Kind]int{},
			},
			wantContains:    []string{"⚠️  tls scan finished with 2 failed repositories", "1 issue update(s) failed"},
			wantNotContains: []string{"Skipped:", "Tracking issue", "Report written"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatScanSummary("tls", tt.summary)
			for _, want := range tt.wantContains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.wantNotContains {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}
