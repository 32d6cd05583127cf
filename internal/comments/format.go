// internal/comments/format.go
package comments

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"codesentry/internal/model"
)

// LowConfidenceThreshold is the confidence below which a finding carries a review note.
const LowConfidenceThreshold = 0.7

const footer = "<sub>Powered by **CodeSentry**</sub>"

var severityStyle = map[model.Severity]struct {
	emoji string
	label string
	color string
	badge string
}{
	model.SeverityCritical: {"🔴", "Critical Priority", "red", "Critical"},
	model.SeverityHigh:     {"🟠", "High Priority", "orange", "High"},
	model.SeverityMedium:   {"🟡", "Medium Priority", "yellow", "Medium"},
	model.SeverityLow:      {"🔵", "Low Priority", "blue", "Low"},
}

var typeLabels = map[string]string{
	"sql_injection":             "SQL Injection Vulnerability",
	"cross_site_scripting":      "Cross-Site Scripting (XSS)",
	"authentication_bypass":     "Authentication Bypass",
	"broken_access_control":     "Access Control Issue",
	"sensitive_data_exposure":   "Sensitive Data Exposure",
	"xml_external_entities":     "XML External Entity (XXE)",
	"insecure_deserialization":  "Insecure Deserialization",
	"security_misconfiguration": "Security Misconfiguration",
	"injection":                 "Injection Vulnerability",
	"injection_flaw":            "Injection Vulnerability",
	"insecure_dependencies":     "Vulnerable Dependency",
	"hardcoded_secret":          "Hardcoded Secret",
	"weak_crypto":               "Weak Cryptography",
}

var typeImpacts = map[string]string{
	"sql_injection":             "SQL injection allows attackers to manipulate database queries, potentially leading to unauthorized data access, modification, or deletion.",
	"cross_site_scripting":      "XSS vulnerabilities enable attackers to inject malicious scripts that execute in users' browsers, potentially stealing sensitive data or hijacking sessions.",
	"authentication_bypass":     "Authentication flaws can allow unauthorized access to protected resources or user accounts.",
	"sensitive_data_exposure":   "Exposing sensitive information like passwords, API keys, or personal data creates significant security and compliance risks.",
	"broken_access_control":     "Access control weaknesses enable users to perform actions or access data beyond their authorized permissions.",
	"insecure_deserialization":  "Insecure deserialization can lead to remote code execution, allowing attackers to run arbitrary code on your server.",
	"security_misconfiguration": "Security misconfigurations often provide attackers with easy entry points into your application.",
	"injection":                 "Injection vulnerabilities allow attackers to send malicious input that gets executed as code or commands.",
	"injection_flaw":            "Injection vulnerabilities allow attackers to send malicious input that gets executed as code or commands.",
	"hardcoded_secret":          "Hardcoded secrets in source code can be easily discovered by attackers, compromising your entire system.",
	"weak_crypto":               "Weak cryptographic algorithms or implementations can be broken by attackers, exposing sensitive data.",
}

const defaultImpact = "This security issue requires attention to prevent potential exploitation."

var titleCaser = cases.Title(language.English)

// TypeLabel returns a human readable name for a vulnerability type.
func TypeLabel(vulnType string) string {
	if vulnType == "" {
		return "Security Issue"
	}
	if label, ok := typeLabels[vulnType]; ok {
		return label
	}
	return titleCaser.String(strings.ReplaceAll(vulnType, "_", " "))
}

// Impact returns the explanatory preamble for a finding.
func Impact(vulnType string, severity model.Severity) string {
	impact, ok := typeImpacts[vulnType]
	if !ok {
		impact = defaultImpact
	}
	if severity == model.SeverityCritical {
		impact += " Treat this as a merge blocker."
	}
	return impact
}

// FormatBatchedSecurityComment renders every finding for one file as a single
// comment, grouped by severity from critical to low. It returns false when
// there is nothing to post.
func FormatBatchedSecurityComment(vulns []model.Vulnerability, fileName string) (string, bool) {
	grouped := make(map[model.Severity][]model.Vulnerability, len(model.Severities))
	var counts model.SeverityCounts
	for _, v := range vulns {
		sev := v.Severity
		if _, known := severityStyle[sev]; !known {
			sev = model.SeverityLow
		}
		grouped[sev] = append(grouped[sev], v)
		counts.Add(sev)
	}
	total := counts.Total()
	if total == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("## 🔒 Security Analysis\n\n")
	fmt.Fprintf(&b, "**File:** `%s`\n\n", fileName)

	for _, sev := range model.Severities {
		if n := counts.Get(sev); n > 0 {
			style := severityStyle[sev]
			fmt.Fprintf(&b, "![%s](https://img.shields.io/badge/%s-%d-%s) ", style.badge, style.badge, n, style.color)
		}
	}
	b.WriteString("\n\n")

	if urgent := counts.Critical + counts.High; urgent > 0 {
		fmt.Fprintf(&b, "> **⚠️ Action Required:** Found %d high-priority security %s that should be addressed before merging.\n\n", urgent, plural(urgent, "issue", "issues"))
	} else {
		fmt.Fprintf(&b, "> **📋 Review Recommended:** Found %d security %s for your review.\n\n", total, plural(total, "issue", "issues"))
	}
	b.WriteString("---\n\n")

	for _, sev := range model.Severities {
		issues := grouped[sev]
		if len(issues) == 0 {
			continue
		}
		style := severityStyle[sev]
		fmt.Fprintf(&b, "### %s %s\n\n", style.emoji, style.label)

		for i, v := range issues {
			writeFinding(&b, i+1, v, sev)
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(footer)
	return b.String(), true
}

func writeFinding(b *strings.Builder, index int, v model.Vulnerability, sev model.Severity) {
	lineInfo := ""
	if v.LineNumber > 0 {
		lineInfo = fmt.Sprintf(" (Line %d)", v.LineNumber)
	}

	b.WriteString("<details>\n")
	fmt.Fprintf(b, "<summary><strong>%d. %s%s</strong></summary>\n\n", index, TypeLabel(v.Type), lineInfo)
	fmt.Fprintf(b, "**Description:**\n%s\n\n", v.Description)
	if v.CodeSnippet != "" {
		fmt.Fprintf(b, "**Code:**\n```python\n%s\n```\n\n", v.CodeSnippet)
	}
	fmt.Fprintf(b, "**Impact:**\n%s\n\n", Impact(v.Type, sev))
	fmt.Fprintf(b, "**💡 Recommendation:**\n%s\n\n", v.Recommendation)
	if v.Confidence < LowConfidenceThreshold {
		b.WriteString("> **Note:** This finding has moderate confidence. Please review the context carefully.\n\n")
	}
	b.WriteString("</details>\n\n")
}

// FormatProgressComment announces that a large pull request is being analyzed.
func FormatProgressComment(fileCount int) string {
	var b strings.Builder
	b.WriteString("## 🔍 Security Analysis Started\n\n")
	fmt.Fprintf(&b, "Analyzing **%d** %s in this pull request. Findings will be posted per file once the analysis completes.\n\n", fileCount, plural(fileCount, "file", "files"))
	b.WriteString(footer)
	return b.String()
}

// FormatCompletionComment summarizes a finished run.
func FormatCompletionComment(fileCount int, agg model.Aggregate) string {
	var b strings.Builder
	if agg.SeverityCounts.NeedsAttention() {
		b.WriteString("## ⚠️ Security Analysis Complete: Needs Attention\n\n")
	} else {
		b.WriteString("## ✅ Security Analysis Complete\n\n")
	}

	fmt.Fprintf(&b, "Analyzed **%d** of **%d** %s.\n\n", agg.FilesAnalyzed, fileCount, plural(fileCount, "file", "files"))
	b.WriteString("| Severity | Count |\n")
	b.WriteString("|----------|------:|\n")
	for _, sev := range model.Severities {
		style := severityStyle[sev]
		fmt.Fprintf(&b, "| %s %s | %d |\n", style.emoji, style.badge, agg.SeverityCounts.Get(sev))
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", agg.TotalVulnerabilities)

	if agg.TotalStyleIssues > 0 {
		fmt.Fprintf(&b, "Code quality suggestions: **%d** (included in the email summary).\n\n", agg.TotalStyleIssues)
	}

	if len(agg.FilesFailed) > 0 {
		b.WriteString("<details>\n<summary>Files that could not be analyzed</summary>\n\n")
		for _, f := range agg.FilesFailed {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n</details>\n\n")
	}

	if urgent := agg.SeverityCounts.Critical + agg.SeverityCounts.High; urgent > 0 {
		fmt.Fprintf(&b, "> **⚠️ Needs Attention:** %d high-priority security %s should be addressed before merging.\n\n", urgent, plural(urgent, "issue", "issues"))
	} else {
		b.WriteString("> **✅ Clean:** No critical or high severity issues found.\n\n")
	}

	b.WriteString("---\n\n")
	b.WriteString(footer)
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
