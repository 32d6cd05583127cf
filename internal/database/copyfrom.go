// internal/database/copyfrom.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// iteratorForCreateAnalysisFileResults implements pgx.CopyFromSource.
type iteratorForCreateAnalysisFileResults struct {
	rows                 []CreateAnalysisFileResultsParams
	skippedFirstNextCall bool
}

func (r *iteratorForCreateAnalysisFileResults) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForCreateAnalysisFileResults) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].AnalysisID,
		r.rows[0].FilePath,
		r.rows[0].Vulnerabilities,
		r.rows[0].StyleIssues,
		r.rows[0].Error,
	}, nil
}

func (r iteratorForCreateAnalysisFileResults) Err() error {
	return nil
}

func (q *Queries) CreateAnalysisFileResults(ctx context.Context, arg []CreateAnalysisFileResultsParams) (int64, error) {
	return q.db.CopyFrom(ctx, []string{"analysis_file_results"}, []string{"analysis_id", "file_path", "vulnerabilities", "style_issues", "error"}, &iteratorForCreateAnalysisFileResults{rows: arg})
}

var _ pgx.CopyFromSource = (*iteratorForCreateAnalysisFileResults)(nil)
