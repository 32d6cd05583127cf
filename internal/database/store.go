// internal/database/store.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store extends Querier with transactional execution.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

// PoolStore is a Store backed by a pgx connection pool.
type PoolStore struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{
		Queries: New(pool),
		pool:    pool,
	}
}

// ExecTx runs fn inside a transaction, committing only if fn returns nil.
func (s *PoolStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ResetAnalysisRun creates or resets the run of a pull request under a new run id
// and drops the per-file results of the previous run in the same transaction.
func ResetAnalysisRun(ctx context.Context, store Store, arg UpsertAnalysisParams) (Analysis, error) {
	var analysis Analysis
	err := store.ExecTx(ctx, func(q Querier) error {
		var err error
		analysis, err = q.UpsertAnalysis(ctx, arg)
		if err != nil {
			return err
		}
		return q.DeleteAnalysisFileResults(ctx, analysis.ID)
	})
	if err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}
