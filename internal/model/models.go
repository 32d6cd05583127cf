// internal/model/models.go
package model

// RunStatus is the lifecycle state of the analysis run of one pull request.
type RunStatus string

const (
	StatusReceived   RunStatus = "received"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Severity is the ordinal risk classification of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities, 0 being the most severe. Unknown values rank last.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if s == sev {
			return i
		}
	}
	return len(Severities)
}

// Vulnerability is a security finding reported by the analysis engine.
type Vulnerability struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	LineNumber     int      `json:"line_number"`
	Description    string   `json:"description"`
	CodeSnippet    string   `json:"code_snippet,omitempty"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	FilePath       string   `json:"file_path,omitempty"`
}

// StyleIssue is a code quality finding reported by the analysis engine.
type StyleIssue struct {
	Category       string   `json:"category"`
	Code           string   `json:"code,omitempty"`
	Line           int      `json:"line"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
	Severity       Severity `json:"severity"`
	FilePath       string   `json:"file_path,omitempty"`
}

// FileAnalysisResult holds the findings for a single file. Error is set when
// the file could not be analyzed; its findings are then empty.
type FileAnalysisResult struct {
	FilePath        string          `json:"file_path"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	StyleIssues     []StyleIssue    `json:"style_issues"`
	Error           string          `json:"error,omitempty"`
}

// SeverityCounts tallies vulnerabilities per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the counter for sev. Unknown severities are ignored.
func (c *SeverityCounts) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// Get returns the count for sev.
func (c SeverityCounts) Get(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	}
	return 0
}

// Total is the sum of all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// NeedsAttention reports whether any critical or high findings exist.
func (c SeverityCounts) NeedsAttention() bool {
	return c.Critical+c.High > 0
}

// Aggregate is the run-level merge of every FileAnalysisResult.
type Aggregate struct {
	Vulnerabilities      []Vulnerability `json:"vulnerabilities"`
	StyleIssues          []StyleIssue    `json:"style_issues"`
	SeverityCounts       SeverityCounts  `json:"severity_counts"`
	StyleCategories      map[string]int  `json:"style_categories"`
	TotalVulnerabilities int             `json:"total_vulnerabilities"`
	TotalStyleIssues     int             `json:"total_style_issues"`
	FilesAnalyzed        int             `json:"files_analyzed"`
	FilesFailed          []string        `json:"files_failed"`
}

// PullRequest identifies the pull request a run analyzes.
type PullRequest struct {
	Owner              string
	Repo               string
	Number             int
	HTMLURL            string
	Title              string
	Author             string
	HeadSHA            string
	RequestedReviewers []string
}

// FullName returns "owner/repo".
func (p PullRequest) FullName() string {
	return p.Owner + "/" + p.Repo
}

// ChangedFile is a file touched by a pull request.
type ChangedFile struct {
	Filename string
	Status   string
	Patch    string
	RawURL   string
}

// Reviewer is a resolved notification recipient.
type Reviewer struct {
	Username string
	Email    string
}

// WebhookRegistration is a provider webhook pointing at this service.
type WebhookRegistration struct {
	RepositoryFullName string `json:"repository_full_name"`
	WebhookID          int64  `json:"webhook_id"`
	CallbackURL        string `json:"callback_url"`
	AlreadyExisted     bool   `json:"already_existed"`
}
