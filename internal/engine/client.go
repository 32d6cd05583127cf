// internal/engine/client.go
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	custom_errors "codesentry/internal/errors"
	"codesentry/internal/model"
)

const analyzePath = "/api/analysis/analyze"

// DefaultStyleCategories are always present in a Result, even when zero.
var DefaultStyleCategories = []string{"pep8", "pylint", "naming", "complexity"}

// Request is the payload sent to the analysis engine for one file.
type Request struct {
	Code                 string `json:"code"`
	Language             string `json:"language"`
	FilePath             string `json:"file_path"`
	PRNumber             int    `json:"pr_number"`
	Repository           string `json:"repository"`
	IncludeStyleAnalysis bool   `json:"include_style_analysis"`
}

// Result is the validated engine response. Slices and maps are never nil.
type Result struct {
	Vulnerabilities      []model.Vulnerability
	StyleIssues          []model.StyleIssue
	TotalVulnerabilities int
	SeverityCounts       model.SeverityCounts
	TotalStyleIssues     int
	StyleCategories      map[string]int
}

// response mirrors the engine's JSON. Pointer fields distinguish absent from zero.
type response struct {
	Vulnerabilities      []model.Vulnerability `json:"vulnerabilities"`
	StyleIssues          []model.StyleIssue    `json:"style_issues"`
	TotalVulnerabilities *int                  `json:"total_vulnerabilities"`
	SeverityCounts       *model.SeverityCounts `json:"severity_counts"`
	CriticalCount        *int                  `json:"critical_count"`
	HighCount            *int                  `json:"high_count"`
	MediumCount          *int                  `json:"medium_count"`
	LowCount             *int                  `json:"low_count"`
	TotalStyleIssues     *int                  `json:"total_style_issues"`
	StyleCategories      map[string]int        `json:"style_categories"`
}

// Client is an HTTP client for the analysis engine.
// Deadlines come from the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a Client for the engine at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cleanhttp.DefaultPooledClient(),
		logger:  logger,
	}
}

// Analyze submits one file. Failures are returned as *errors.EngineError,
// with Transient set for 5xx, 429, 408, timeouts and network errors.
func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &custom_errors.EngineError{Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, &custom_errors.EngineError{Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &custom_errors.EngineError{Err: err, Transient: isTransientTransportError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &custom_errors.EngineError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(b)),
			Transient:  isTransientStatus(resp.StatusCode),
		}
	}

	var raw response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &custom_errors.EngineError{Message: "decode response", Err: err}
	}

	result := raw.validate()
	c.logger.Debug("Engine analysis finished", "file", req.FilePath, "vulnerabilities", result.TotalVulnerabilities, "style_issues", result.TotalStyleIssues)
	return result, nil
}

// validate applies defaults to optional fields.
func (r response) validate() *Result {
	result := &Result{
		Vulnerabilities: make([]model.Vulnerability, 0, len(r.Vulnerabilities)),
		StyleIssues:     make([]model.StyleIssue, 0, len(r.StyleIssues)),
		StyleCategories: make(map[string]int, len(DefaultStyleCategories)),
	}

	var counted model.SeverityCounts
	for _, v := range r.Vulnerabilities {
		v.Severity = normalizeSeverity(v.Severity)
		v.Confidence = clamp(v.Confidence)
		counted.Add(v.Severity)
		result.Vulnerabilities = append(result.Vulnerabilities, v)
	}
	for _, s := range r.StyleIssues {
		s.Severity = normalizeSeverity(s.Severity)
		result.StyleIssues = append(result.StyleIssues, s)
	}

	switch {
	case r.SeverityCounts != nil:
		result.SeverityCounts = *r.SeverityCounts
	case r.CriticalCount != nil || r.HighCount != nil || r.MediumCount != nil || r.LowCount != nil:
		result.SeverityCounts = model.SeverityCounts{
			Critical: deref(r.CriticalCount),
			High:     deref(r.HighCount),
			Medium:   deref(r.MediumCount),
			Low:      deref(r.LowCount),
		}
	default:
		result.SeverityCounts = counted
	}

	result.TotalVulnerabilities = len(result.Vulnerabilities)
	if r.TotalVulnerabilities != nil {
		result.TotalVulnerabilities = *r.TotalVulnerabilities
	}
	result.TotalStyleIssues = len(result.StyleIssues)
	if r.TotalStyleIssues != nil {
		result.TotalStyleIssues = *r.TotalStyleIssues
	}

	for _, cat := range DefaultStyleCategories {
		result.StyleCategories[cat] = 0
	}
	for cat, n := range r.StyleCategories {
		result.StyleCategories[cat] = n
	}
	return result
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func isTransientTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// normalizeSeverity folds case and maps empty or unknown values to low.
func normalizeSeverity(s model.Severity) model.Severity {
	s = model.Severity(strings.ToLower(strings.TrimSpace(string(s))))
	if s.Rank() == len(model.Severities) {
		return model.SeverityLow
	}
	return s
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
