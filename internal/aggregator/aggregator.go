// internal/aggregator/aggregator.go
package aggregator

import (
	"sort"

	"codesentry/internal/model"
)

// Aggregate merges per-file results into run-level totals. Findings are
// tagged with their file path and sorted by file, line, severity and type,
// so the output does not depend on the order files were processed in.
func Aggregate(results []model.FileAnalysisResult) model.Aggregate {
	agg := model.Aggregate{
		Vulnerabilities: []model.Vulnerability{},
		StyleIssues:     []model.StyleIssue{},
		StyleCategories: map[string]int{},
		FilesFailed:     []string{},
	}

	for _, r := range results {
		if r.Error != "" {
			agg.FilesFailed = append(agg.FilesFailed, r.FilePath)
			continue
		}
		agg.FilesAnalyzed++

		for _, v := range r.Vulnerabilities {
			v.FilePath = r.FilePath
			agg.SeverityCounts.Add(v.Severity)
			agg.Vulnerabilities = append(agg.Vulnerabilities, v)
		}
		for _, s := range r.StyleIssues {
			s.FilePath = r.FilePath
			agg.StyleCategories[s.Category]++
			agg.StyleIssues = append(agg.StyleIssues, s)
		}
	}

	agg.TotalVulnerabilities = len(agg.Vulnerabilities)
	agg.TotalStyleIssues = len(agg.StyleIssues)

	sort.SliceStable(agg.Vulnerabilities, func(i, j int) bool {
		a, b := agg.Vulnerabilities[i], agg.Vulnerabilities[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		return a.Type < b.Type
	})
	sort.SliceStable(agg.StyleIssues, func(i, j int) bool {
		a, b := agg.StyleIssues[i], agg.StyleIssues[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Code < b.Code
	})
	sort.Strings(agg.FilesFailed)

	return agg
}
