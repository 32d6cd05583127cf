// internal/comments/dispatcher.go
package comments

import (
	"context"
	"log/slog"
	"time"

	"codesentry/internal/model"
)

// Poster creates a comment on a pull request conversation.
type Poster interface {
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error)
}

// Dispatcher posts analysis comments. Failures are logged and never returned.
type Dispatcher struct {
	largePRThreshold int
	timeout          time.Duration
	logger           *slog.Logger
}

// NewDispatcher creates a Dispatcher. Progress and completion comments are
// posted only for pull requests with more than largePRThreshold files.
func NewDispatcher(largePRThreshold int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		largePRThreshold: largePRThreshold,
		timeout:          timeout,
		logger:           logger,
	}
}

// IsLargePR reports whether fileCount exceeds the progress comment threshold.
func (d *Dispatcher) IsLargePR(fileCount int) bool {
	return fileCount > d.largePRThreshold
}

// PostBatchedSecurityComment posts one comment with every finding for a file.
// It reports whether a comment was posted.
func (d *Dispatcher) PostBatchedSecurityComment(ctx context.Context, poster Poster, pr model.PullRequest, vulns []model.Vulnerability, fileName string) bool {
	body, ok := FormatBatchedSecurityComment(vulns, fileName)
	if !ok {
		return false
	}
	return d.post(ctx, poster, pr, body, "security", "file", fileName, "vulnerabilities", len(vulns))
}

// PostProgress posts the "started" marker for large pull requests.
func (d *Dispatcher) PostProgress(ctx context.Context, poster Poster, pr model.PullRequest, fileCount int) bool {
	if !d.IsLargePR(fileCount) {
		return false
	}
	return d.post(ctx, poster, pr, FormatProgressComment(fileCount), "progress", "files", fileCount)
}

// PostCompletion posts the run summary for large pull requests.
func (d *Dispatcher) PostCompletion(ctx context.Context, poster Poster, pr model.PullRequest, fileCount int, agg model.Aggregate) bool {
	if !d.IsLargePR(fileCount) {
		return false
	}
	return d.post(ctx, poster, pr, FormatCompletionComment(fileCount, agg), "completion", "files", fileCount)
}

func (d *Dispatcher) post(ctx context.Context, poster Poster, pr model.PullRequest, body, kind string, attrs ...any) bool {
	logger := d.logger.With("repo", pr.FullName(), "pr", pr.Number, "comment", kind).With(attrs...)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := poster.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, body)
	if err != nil {
		logger.Error("Failed to post comment", "error", err)
		return false
	}
	logger.Info("Posted comment", "comment_id", id)
	return true
}
