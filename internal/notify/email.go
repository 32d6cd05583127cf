// internal/notify/email.go
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"codesentry/internal/model"
)

//go:embed templates/summary.html
var templateFS embed.FS

var summaryTemplate = template.Must(template.ParseFS(templateFS, "templates/summary.html"))

type summaryData struct {
	Repository           string
	Number               int
	Title                string
	Author               string
	URL                  string
	FilesAnalyzed        int
	FilesFailed          []string
	Counts               model.SeverityCounts
	TotalVulnerabilities int
	TotalStyleIssues     int
	Clean                bool
}

// Subject escalates with severity: critical findings are urgent, any finding is a warning.
func Subject(pr model.PullRequest, agg model.Aggregate) string {
	switch {
	case agg.SeverityCounts.Critical > 0:
		return fmt.Sprintf("🚨 CRITICAL: PR #%d - %d critical issues found", pr.Number, agg.SeverityCounts.Critical)
	case agg.TotalVulnerabilities > 0:
		return fmt.Sprintf("⚠️ Review Needed: PR #%d - %d issues found", pr.Number, agg.TotalVulnerabilities)
	default:
		return fmt.Sprintf("✅ PR #%d - No issues found: %s", pr.Number, pr.Title)
	}
}

// RenderSummary builds the HTML body of the summary email.
func RenderSummary(pr model.PullRequest, agg model.Aggregate) (string, error) {
	data := summaryData{
		Repository:           pr.FullName(),
		Number:               pr.Number,
		Title:                pr.Title,
		Author:               pr.Author,
		URL:                  pr.HTMLURL,
		FilesAnalyzed:        agg.FilesAnalyzed,
		FilesFailed:          agg.FilesFailed,
		Counts:               agg.SeverityCounts,
		TotalVulnerabilities: agg.TotalVulnerabilities,
		TotalStyleIssues:     agg.TotalStyleIssues,
		Clean:                agg.TotalVulnerabilities == 0 && agg.TotalStyleIssues == 0,
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary email: %w", err)
	}
	return buf.String(), nil
}
