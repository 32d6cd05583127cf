// internal/database/analyses.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const analysisColumns = `id, run_id, repository_id, pr_number, pr_url, pr_title, status, started_at, completed_at,
    files_analyzed, total_vulnerabilities, critical_count, high_count, medium_count, low_count,
    total_style_issues, style_categories, error`

func scanAnalysis(row interface{ Scan(...any) error }) (Analysis, error) {
	var i Analysis
	err := row.Scan(
		&i.ID,
		&i.RunID,
		&i.RepositoryID,
		&i.PrNumber,
		&i.PrUrl,
		&i.PrTitle,
		&i.Status,
		&i.StartedAt,
		&i.CompletedAt,
		&i.FilesAnalyzed,
		&i.TotalVulnerabilities,
		&i.CriticalCount,
		&i.HighCount,
		&i.MediumCount,
		&i.LowCount,
		&i.TotalStyleIssues,
		&i.StyleCategories,
		&i.Error,
	)
	return i, err
}

const upsertAnalysis = `-- name: UpsertAnalysis :one
INSERT INTO analyses (run_id, repository_id, pr_number, pr_url, pr_title, status, started_at)
VALUES ($1, $2, $3, $4, $5, 'received', NOW())
ON CONFLICT (repository_id, pr_number) DO UPDATE SET
    run_id = EXCLUDED.run_id,
    pr_url = EXCLUDED.pr_url,
    pr_title = EXCLUDED.pr_title,
    status = 'received',
    started_at = NOW(),
    completed_at = NULL,
    files_analyzed = 0,
    total_vulnerabilities = 0,
    critical_count = 0,
    high_count = 0,
    medium_count = 0,
    low_count = 0,
    total_style_issues = 0,
    style_categories = '{}'::jsonb,
    error = NULL
RETURNING ` + analysisColumns

type UpsertAnalysisParams struct {
	RunID        pgtype.UUID `json:"run_id"`
	RepositoryID int64       `json:"repository_id"`
	PrNumber     int32       `json:"pr_number"`
	PrUrl        string      `json:"pr_url"`
	PrTitle      string      `json:"pr_title"`
}

// UpsertAnalysis creates the run for a pull request or resets the existing one.
func (q *Queries) UpsertAnalysis(ctx context.Context, arg UpsertAnalysisParams) (Analysis, error) {
	row := q.db.QueryRow(ctx, upsertAnalysis,
		arg.RunID,
		arg.RepositoryID,
		arg.PrNumber,
		arg.PrUrl,
		arg.PrTitle,
	)
	return scanAnalysis(row)
}

const markAnalysisProcessing = `-- name: MarkAnalysisProcessing :execrows
UPDATE analyses
SET status = 'processing'
WHERE id = $1 AND run_id = $2
`

type MarkAnalysisProcessingParams struct {
	ID    int64       `json:"id"`
	RunID pgtype.UUID `json:"run_id"`
}

func (q *Queries) MarkAnalysisProcessing(ctx context.Context, arg MarkAnalysisProcessingParams) (int64, error) {
	result, err := q.db.Exec(ctx, markAnalysisProcessing, arg.ID, arg.RunID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeAnalysis = `-- name: CompleteAnalysis :execrows
UPDATE analyses
SET status = 'completed',
    completed_at = NOW(),
    files_analyzed = $3,
    total_vulnerabilities = $4,
    critical_count = $5,
    high_count = $6,
    medium_count = $7,
    low_count = $8,
    total_style_issues = $9,
    style_categories = $10
WHERE id = $1 AND run_id = $2
`

type CompleteAnalysisParams struct {
	ID                   int64       `json:"id"`
	RunID                pgtype.UUID `json:"run_id"`
	FilesAnalyzed        int32       `json:"files_analyzed"`
	TotalVulnerabilities int32       `json:"total_vulnerabilities"`
	CriticalCount        int32       `json:"critical_count"`
	HighCount            int32       `json:"high_count"`
	MediumCount          int32       `json:"medium_count"`
	LowCount             int32       `json:"low_count"`
	TotalStyleIssues     int32       `json:"total_style_issues"`
	StyleCategories      []byte      `json:"style_categories"`
}

func (q *Queries) CompleteAnalysis(ctx context.Context, arg CompleteAnalysisParams) (int64, error) {
	result, err := q.db.Exec(ctx, completeAnalysis,
		arg.ID,
		arg.RunID,
		arg.FilesAnalyzed,
		arg.TotalVulnerabilities,
		arg.CriticalCount,
		arg.HighCount,
		arg.MediumCount,
		arg.LowCount,
		arg.TotalStyleIssues,
		arg.StyleCategories,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failAnalysis = `-- name: FailAnalysis :execrows
UPDATE analyses
SET status = 'failed', completed_at = NOW(), error = $3
WHERE id = $1 AND run_id = $2
`

type FailAnalysisParams struct {
	ID    int64       `json:"id"`
	RunID pgtype.UUID `json:"run_id"`
	Error pgtype.Text `json:"error"`
}

func (q *Queries) FailAnalysis(ctx context.Context, arg FailAnalysisParams) (int64, error) {
	result, err := q.db.Exec(ctx, failAnalysis, arg.ID, arg.RunID, arg.Error)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getAnalysisByRepoAndPR = `-- name: GetAnalysisByRepoAndPR :one
SELECT ` + analysisColumns + `
FROM analyses
WHERE repository_id = $1 AND pr_number = $2
`

type GetAnalysisByRepoAndPRParams struct {
	RepositoryID int64 `json:"repository_id"`
	PrNumber     int32 `json:"pr_number"`
}

func (q *Queries) GetAnalysisByRepoAndPR(ctx context.Context, arg GetAnalysisByRepoAndPRParams) (Analysis, error) {
	row := q.db.QueryRow(ctx, getAnalysisByRepoAndPR, arg.RepositoryID, arg.PrNumber)
	return scanAnalysis(row)
}

const deleteAnalysisFileResults = `-- name: DeleteAnalysisFileResults :exec
DELETE FROM analysis_file_results
WHERE analysis_id = $1
`

func (q *Queries) DeleteAnalysisFileResults(ctx context.Context, analysisID int64) error {
	_, err := q.db.Exec(ctx, deleteAnalysisFileResults, analysisID)
	return err
}

type CreateAnalysisFileResultsParams struct {
	AnalysisID      int64       `json:"analysis_id"`
	FilePath        string      `json:"file_path"`
	Vulnerabilities []byte      `json:"vulnerabilities"`
	StyleIssues     []byte      `json:"style_issues"`
	Error           pgtype.Text `json:"error"`
}

const listAnalysisFileResults = `-- name: ListAnalysisFileResults :many
SELECT id, analysis_id, file_path, vulnerabilities, style_issues, error, created_at
FROM analysis_file_results
WHERE analysis_id = $1
ORDER BY file_path
`

func (q *Queries) ListAnalysisFileResults(ctx context.Context, analysisID int64) ([]AnalysisFileResult, error) {
	rows, err := q.db.Query(ctx, listAnalysisFileResults, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnalysisFileResult
	for rows.Next() {
		var i AnalysisFileResult
		if err := rows.Scan(
			&i.ID,
			&i.AnalysisID,
			&i.FilePath,
			&i.Vulnerabilities,
			&i.StyleIssues,
			&i.Error,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
