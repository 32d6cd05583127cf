// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"codesentry/internal/aggregator"
	"codesentry/internal/comments"
	"codesentry/internal/database"
	"codesentry/internal/engine"
	custom_errors "codesentry/internal/errors"
	"codesentry/internal/github"
	"codesentry/internal/model"
	"codesentry/internal/notify"
	"codesentry/internal/vault"
)

// failWriteTimeout bounds the status write made after a run has been cancelled.
const failWriteTimeout = 10 * time.Second

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// Job identifies one analysis run.
type Job struct {
	AnalysisID   int64
	RunID        pgtype.UUID
	RepositoryID int64
	UserID       int64
	PR           model.PullRequest
}

// GitHubClient is the set of provider calls a run makes.
type GitHubClient interface {
	comments.Poster
	notify.UserLookup
	ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.ChangedFile, error)
	GetRawContent(ctx context.Context, rawURL string) (string, error)
}

// ClientFunc builds a GitHubClient authenticated with a plaintext token.
type ClientFunc func(token string) (GitHubClient, error)

// FromFactory adapts a github.Factory to a ClientFunc.
func FromFactory(f *github.Factory) ClientFunc {
	return func(token string) (GitHubClient, error) {
		c, err := f.ForToken(token)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Analyzer submits one file to the analysis engine.
type Analyzer interface {
	Analyze(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// Notifier delivers the end-of-run summary.
type Notifier interface {
	Notify(ctx context.Context, lookup notify.UserLookup, pr model.PullRequest, agg model.Aggregate) int
}

// Options tunes the per-run pipeline.
type Options struct {
	Language       string
	Extensions     []string
	SkipPatterns   []string
	FileTimeout    time.Duration
	Retry          RetryPolicy
	InterFileDelay time.Duration
}

// Orchestrator runs analyses in background goroutines, one per submitted job.
// Files within a run are processed sequentially.
type Orchestrator struct {
	store    database.Store
	vault    *vault.Vault
	clients  ClientFunc
	analyzer Analyzer
	comments *comments.Dispatcher
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopping bool
}

// New creates an Orchestrator. notifier may be nil.
func New(store database.Store, v *vault.Vault, clients ClientFunc, analyzer Analyzer, dispatcher *comments.Dispatcher, notifier Notifier, opts Options, logger *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		vault:    v,
		clients:  clients,
		analyzer: analyzer,
		comments: dispatcher,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Submit starts a run in the background. It does not wait for completion.
func (o *Orchestrator) Submit(job Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopping {
		return ErrShuttingDown
	}
	o.goSupervised("run", job, func(ctx context.Context) {
		if err := o.Run(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("Analysis run failed", "analysis_id", job.AnalysisID, "run_id", runIDString(job.RunID), "error", err)
		}
	})
	return nil
}

// Shutdown stops accepting jobs and waits for in-flight work. When ctx expires
// first, in-flight runs are cancelled and ctx.Err() is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopping = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

// goSupervised runs fn in a tracked goroutine that cannot crash the process.
func (o *Orchestrator) goSupervised(task string, job Job, fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Recovered from panic in background task", "task", task, "analysis_id", job.AnalysisID, "panic", fmt.Sprint(r))
			}
		}()
		fn(o.baseCtx)
	}()
}

// Run executes one analysis run to completion.
func (o *Orchestrator) Run(ctx context.Context, job Job) error {
	logger := o.logger.With("analysis_id", job.AnalysisID, "run_id", runIDString(job.RunID), "repository", job.PR.FullName(), "pr", job.PR.Number)
	logger.Info("Starting analysis run")

	rows, err := o.store.MarkAnalysisProcessing(ctx, database.MarkAnalysisProcessingParams{ID: job.AnalysisID, RunID: job.RunID})
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if rows == 0 {
		logger.Info("Run superseded before it started")
		return nil
	}

	token, err := o.loadToken(ctx, job.UserID)
	if err != nil {
		return o.fail(ctx, job, err)
	}
	client, err := o.clients(token)
	if err != nil {
		return o.fail(ctx, job, err)
	}

	allFiles, err := client.ListPullRequestFiles(ctx, job.PR.Owner, job.PR.Repo, job.PR.Number)
	if err != nil {
		return o.fail(ctx, job, err)
	}
	files := FilterFiles(allFiles, o.opts.Extensions, o.opts.SkipPatterns)
	logger.Info("Found files to analyze", "changed", len(allFiles), "selected", len(files))

	o.comments.PostProgress(ctx, client, job.PR, len(files))

	results := make([]model.FileAnalysisResult, 0, len(files))
	for i, f := range files {
		results = append(results, o.analyzeFile(ctx, logger, client, job.PR, f))

		if i < len(files)-1 && o.opts.InterFileDelay > 0 {
			if err := sleep(ctx, o.opts.InterFileDelay); err != nil {
				return o.fail(ctx, job, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, job, err)
	}

	agg := aggregator.Aggregate(results)
	logger.Info("Analysis finished",
		"files_analyzed", agg.FilesAnalyzed,
		"files_failed", len(agg.FilesFailed),
		"vulnerabilities", agg.TotalVulnerabilities,
		"style_issues", agg.TotalStyleIssues,
	)

	for _, r := range results {
		if r.Error == "" && len(r.Vulnerabilities) > 0 {
			o.comments.PostBatchedSecurityComment(ctx, client, job.PR, r.Vulnerabilities, r.FilePath)
		}
	}
	o.comments.PostCompletion(ctx, client, job.PR, len(files), agg)

	if err := o.persist(ctx, job, results, agg); err != nil {
		if errors.Is(err, custom_errors.ErrRunSuperseded) {
			logger.Info("Run superseded, results discarded")
			return nil
		}
		return o.fail(ctx, job, fmt.Errorf("persist results: %w", err))
	}
	logger.Info("Analysis run completed")

	if o.notifier != nil {
		o.goSupervised("notify", job, func(ctx context.Context) {
			o.notifier.Notify(ctx, client, job.PR, agg)
		})
	}
	return nil
}

// analyzeFile never fails: errors are recorded on the returned result.
func (o *Orchestrator) analyzeFile(ctx context.Context, logger *slog.Logger, client GitHubClient, pr model.PullRequest, f model.ChangedFile) model.FileAnalysisResult {
	logger = logger.With("file", f.Filename)
	result := model.FileAnalysisResult{
		FilePath:        f.Filename,
		Vulnerabilities: []model.Vulnerability{},
		StyleIssues:     []model.StyleIssue{},
	}

	content, err := o.fetchContent(ctx, client, f)
	if err != nil {
		logger.Warn("Failed to fetch file content", "error", err)
		result.Error = err.Error()
		return result
	}

	req := engine.Request{
		Code:                 content,
		Language:             o.opts.Language,
		FilePath:             f.Filename,
		PRNumber:             pr.Number,
		Repository:           pr.FullName(),
		IncludeStyleAnalysis: true,
	}

	var res *engine.Result
	err = o.opts.Retry.Do(ctx, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.FileTimeout)
		defer cancel()

		logger.Debug("Calling analysis engine", "attempt", attempt)
		var callErr error
		res, callErr = o.analyzer.Analyze(callCtx, req)
		return callErr
	}, func(err error, wait time.Duration) {
		logger.Warn("Transient analysis failure, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		logger.Error("File analysis failed", "error", err)
		result.Error = err.Error()
		return result
	}

	result.Vulnerabilities = res.Vulnerabilities
	result.StyleIssues = res.StyleIssues
	logger.Info("File analyzed", "vulnerabilities", len(res.Vulnerabilities), "style_issues", len(res.StyleIssues))
	return result
}

func (o *Orchestrator) persist(ctx context.Context, job Job, results []model.FileAnalysisResult, agg model.Aggregate) error {
	categories, err := json.Marshal(agg.StyleCategories)
	if err != nil {
		return err
	}
	rows, err := prepareFileResultInsert(job.AnalysisID, results)
	if err != nil {
		return err
	}

	return o.store.ExecTx(ctx, func(q database.Querier) error {
		n, err := q.CompleteAnalysis(ctx, database.CompleteAnalysisParams{
			ID:                   job.AnalysisID,
			RunID:                job.RunID,
			FilesAnalyzed:        int32(agg.FilesAnalyzed),
			TotalVulnerabilities: int32(agg.TotalVulnerabilities),
			CriticalCount:        int32(agg.SeverityCounts.Critical),
			HighCount:            int32(agg.SeverityCounts.High),
			MediumCount:          int32(agg.SeverityCounts.Medium),
			LowCount:             int32(agg.SeverityCounts.Low),
			TotalStyleIssues:     int32(agg.TotalStyleIssues),
			StyleCategories:      categories,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return custom_errors.ErrRunSuperseded
		}

		if err := q.DeleteAnalysisFileResults(ctx, job.AnalysisID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = q.CreateAnalysisFileResults(ctx, rows)
		return err
	})
}

// fail marks the run failed. A superseded run is left alone.
// The write survives cancellation of ctx so a cancelled run never stays in processing.
func (o *Orchestrator) fail(ctx context.Context, job Job, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	n, err := o.store.FailAnalysis(ctx, database.FailAnalysisParams{
		ID:    job.AnalysisID,
		RunID: job.RunID,
		Error: pgtype.Text{String: cause.Error(), Valid: true},
	})
	if err != nil {
		return errors.Join(cause, fmt.Errorf("mark failed: %w", err))
	}
	if n == 0 {
		o.logger.Info("Run superseded, failure not recorded", "analysis_id", job.AnalysisID, "error", cause)
	}
	return cause
}

func (o *Orchestrator) loadToken(ctx context.Context, userID int64) (string, error) {
	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user %d: %w", userID, err)
	}
	if !user.GithubToken.Valid || user.GithubToken.String == "" {
		return "", custom_errors.ErrNoToken
	}
	return o.vault.Decrypt(user.GithubToken.String)
}

func prepareFileResultInsert(analysisID int64, results []model.FileAnalysisResult) ([]database.CreateAnalysisFileResultsParams, error) {
	params := make([]database.CreateAnalysisFileResultsParams, len(results))
	for i, r := range results {
		vulns, err := json.Marshal(r.Vulnerabilities)
		if err != nil {
			return nil, err
		}
		style, err := json.Marshal(r.StyleIssues)
		if err != nil {
			return nil, err
		}
		params[i] = database.CreateAnalysisFileResultsParams{
			AnalysisID:      analysisID,
			FilePath:        r.FilePath,
			Vulnerabilities: vulns,
			StyleIssues:     style,
			Error:           pgtype.Text{String: r.Error, Valid: r.Error != ""},
		}
	}
	return params, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
