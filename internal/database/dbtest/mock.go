// internal/database/dbtest/mock.go
package dbtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"codesentry/internal/database"
)

// MockStore is a mock of the database.Store interface.
// ExecTx runs the callback against the mock itself.
type MockStore struct {
	mock.Mock
}

var _ database.Store = (*MockStore)(nil)

func (m *MockStore) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	return fn(m)
}
func (m *MockStore) CompleteAnalysis(ctx context.Context, arg database.CompleteAnalysisParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) CreateAnalysisFileResults(ctx context.Context, arg []database.CreateAnalysisFileResultsParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) CreateWebhookEvent(ctx context.Context, arg database.CreateWebhookEventParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockStore) DeleteAnalysisFileResults(ctx context.Context, analysisID int64) error {
	args := m.Called(ctx, analysisID)
	return args.Error(0)
}
func (m *MockStore) FailAnalysis(ctx context.Context, arg database.FailAnalysisParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) GetAnalysisByRepoAndPR(ctx context.Context, arg database.GetAnalysisByRepoAndPRParams) (database.Analysis, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Analysis), args.Error(1)
}
func (m *MockStore) GetRepositoryByGithubID(ctx context.Context, githubID int64) (database.Repository, error) {
	args := m.Called(ctx, githubID)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockStore) GetRepositoryByID(ctx context.Context, id int64) (database.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockStore) GetUserByID(ctx context.Context, id int64) (database.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.User), args.Error(1)
}
func (m *MockStore) ListAnalysisFileResults(ctx context.Context, analysisID int64) ([]database.AnalysisFileResult, error) {
	args := m.Called(ctx, analysisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.AnalysisFileResult), args.Error(1)
}
func (m *MockStore) ListRepositoriesWithoutWebhook(ctx context.Context, userID int64) ([]database.Repository, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Repository), args.Error(1)
}
func (m *MockStore) ListUsersWithTokens(ctx context.Context) ([]database.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.User), args.Error(1)
}
func (m *MockStore) ListWebhookEventsByRepo(ctx context.Context, arg database.ListWebhookEventsByRepoParams) ([]database.WebhookEvent, error) {
	args := m.Called(ctx, arg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.WebhookEvent), args.Error(1)
}
func (m *MockStore) MarkAnalysisProcessing(ctx context.Context, arg database.MarkAnalysisProcessingParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) UpdateRepositoryWebhook(ctx context.Context, arg database.UpdateRepositoryWebhookParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockStore) UpdateUserToken(ctx context.Context, arg database.UpdateUserTokenParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockStore) UpsertAnalysis(ctx context.Context, arg database.UpsertAnalysisParams) (database.Analysis, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Analysis), args.Error(1)
}
