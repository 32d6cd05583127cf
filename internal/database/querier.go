// internal/database/querier.go
package database

import (
	"context"
)

type Querier interface {
	CompleteAnalysis(ctx context.Context, arg CompleteAnalysisParams) (int64, error)
	CreateAnalysisFileResults(ctx context.Context, arg []CreateAnalysisFileResultsParams) (int64, error)
	CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) error
	DeleteAnalysisFileResults(ctx context.Context, analysisID int64) error
	FailAnalysis(ctx context.Context, arg FailAnalysisParams) (int64, error)
	GetAnalysisByRepoAndPR(ctx context.Context, arg GetAnalysisByRepoAndPRParams) (Analysis, error)
	GetRepositoryByGithubID(ctx context.Context, githubID int64) (Repository, error)
	GetRepositoryByID(ctx context.Context, id int64) (Repository, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	ListAnalysisFileResults(ctx context.Context, analysisID int64) ([]AnalysisFileResult, error)
	ListRepositoriesWithoutWebhook(ctx context.Context, userID int64) ([]Repository, error)
	ListUsersWithTokens(ctx context.Context) ([]User, error)
	ListWebhookEventsByRepo(ctx context.Context, arg ListWebhookEventsByRepoParams) ([]WebhookEvent, error)
	MarkAnalysisProcessing(ctx context.Context, arg MarkAnalysisProcessingParams) (int64, error)
	UpdateRepositoryWebhook(ctx context.Context, arg UpdateRepositoryWebhookParams) error
	UpdateUserToken(ctx context.Context, arg UpdateUserTokenParams) error
	UpsertAnalysis(ctx context.Context, arg UpsertAnalysisParams) (Analysis, error)
}

var _ Querier = (*Queries)(nil)
