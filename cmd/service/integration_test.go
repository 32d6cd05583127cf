//go:build integration

// cmd/service/integration_test.go
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"codesentry/internal/api"
	"codesentry/internal/comments"
	"codesentry/internal/database"
	"codesentry/internal/engine"
	"codesentry/internal/github"
	"codesentry/internal/model"
	"codesentry/internal/orchestrator"
	"codesentry/internal/vault"
	"codesentry/internal/webhooks"
)

const webhookSecret = "integration-secret"

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	_, err = database.Migrate("file://../../migrations", connStr)
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

// seedRepository inserts a user with an encrypted token and one tracked repository.
func seedRepository(ctx context.Context, t *testing.T, dbpool *pgxpool.Pool, v *vault.Vault) (userID, repoID int64) {
	token, err := v.Encrypt("gho_integration")
	require.NoError(t, err)

	err = dbpool.QueryRow(ctx,
		`INSERT INTO users (github_id, github_username, github_token) VALUES ($1, $2, $3) RETURNING id`,
		1001, "octo", token).Scan(&userID)
	require.NoError(t, err)

	err = dbpool.QueryRow(ctx,
		`INSERT INTO repositories (user_id, github_id, owner, name, full_name) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		userID, 4242, "octo", "app", "octo/app").Scan(&repoID)
	require.NoError(t, err)
	return userID, repoID
}

func TestAnalysisRunGuard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	v, err := vault.New(strings.Repeat("ef", 32))
	require.NoError(t, err)
	_, repoID := seedRepository(ctx, t, dbpool, v)
	store := database.NewStore(dbpool)

	firstRun := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	first, err := database.ResetAnalysisRun(ctx, store, database.UpsertAnalysisParams{RunID: firstRun, RepositoryID: repoID, PrNumber: 7, PrUrl: "u", PrTitle: "t"})
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusReceived), first.Status)

	n, err := store.MarkAnalysisProcessing(ctx, database.MarkAnalysisProcessingParams{ID: first.ID, RunID: firstRun})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	inserted, err := store.CreateAnalysisFileResults(ctx, []database.CreateAnalysisFileResultsParams{
		{AnalysisID: first.ID, FilePath: "a.py", Vulnerabilities: []byte(`[]`), StyleIssues: []byte(`[]`)},
		{AnalysisID: first.ID, FilePath: "b.py", Vulnerabilities: []byte(`[]`), StyleIssues: []byte(`[]`)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// A synchronize event resets the same row under a new run id.
	secondRun := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	second, err := database.ResetAnalysisRun(ctx, store, database.UpsertAnalysisParams{RunID: secondRun, RepositoryID: repoID, PrNumber: 7, PrUrl: "u", PrTitle: "t2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, string(model.StatusReceived), second.Status)
	assert.Equal(t, "t2", second.PrTitle)

	// Results of the previous push do not survive the reset.
	leftover, err := store.ListAnalysisFileResults(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, leftover)

	// The stale run can no longer write its outcome.
	n, err = store.CompleteAnalysis(ctx, database.CompleteAnalysisParams{ID: first.ID, RunID: firstRun, FilesAnalyzed: 3, StyleCategories: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	n, err = store.FailAnalysis(ctx, database.FailAnalysisParams{ID: first.ID, RunID: firstRun, Error: pgtype.Text{String: "stale", Valid: true}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	current, err := store.GetAnalysisByRepoAndPR(ctx, database.GetAnalysisByRepoAndPRParams{RepositoryID: repoID, PrNumber: 7})
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusReceived), current.Status)
	assert.Equal(t, secondRun, current.RunID)
	assert.Equal(t, int32(0), current.FilesAnalyzed)
}

func TestWebhookToCompletion_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v, err := vault.New(strings.Repeat("ef", 32))
	require.NoError(t, err)
	_, repoID := seedRepository(ctx, t, dbpool, v)
	store := database.NewStore(dbpool)

	// Mock GitHub API
	var commentCount atomic.Int32
	ghServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_integration", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/repos/octo/app/pulls/7/files":
			fmt.Fprint(w, `[
				{"filename": "app/db.py", "status": "added", "patch": "@@ -0,0 +1 @@\n+cursor.execute('SELECT * FROM u WHERE id=' + uid)"},
				{"filename": "app/util.py", "status": "added", "patch": "@@ -0,0 +1 @@\n+x = 1"},
				{"filename": "docs/readme.md", "status": "modified"}
			]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v3/repos/octo/app/issues/7/comments":
			commentCount.Add(1)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 1}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ghServer.Close()

	// Mock analysis engine
	engineServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req engine.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.FilePath == "app/db.py" {
			fmt.Fprint(w, `{"vulnerabilities": [{"type": "sql_injection", "severity": "critical", "line_number": 1, "description": "SQL built from input", "recommendation": "use parameters", "confidence": 0.95}], "style_issues": []}`)
			return
		}
		fmt.Fprint(w, `{"vulnerabilities": [], "style_issues": [{"category": "pep8", "line": 1, "message": "ok", "recommendation": "", "severity": "low"}]}`)
	}))
	defer engineServer.Close()

	factory := github.NewFactory(ghServer.URL, 5*time.Second, 0, logger)
	orch := orchestrator.New(store, v, orchestrator.FromFactory(factory), engine.NewClient(engineServer.URL, logger),
		comments.NewDispatcher(3, 5*time.Second, logger), nil, orchestrator.Options{
			Language:     "python",
			Extensions:   []string{".py"},
			FileTimeout:  5 * time.Second,
			Retry:        orchestrator.RetryPolicy{MaxRetries: 1, Delay: 10 * time.Millisecond},
			SkipPatterns: []string{"/migrations/"},
		}, logger)
	hooks := webhooks.NewManager(store, factory, v, "https://cs.example.com/webhooks/github", webhookSecret, logger)
	router := api.NewRouter(store, orch, hooks, api.Options{WebhookSecret: webhookSecret}, logger)

	body := []byte(`{
		"action": "opened",
		"number": 7,
		"pull_request": {"number": 7, "html_url": "https://github.com/octo/app/pull/7", "title": "Add query", "user": {"login": "dana"}, "head": {"sha": "abc"}},
		"repository": {"id": 4242, "name": "app", "full_name": "octo/app", "owner": {"login": "octo"}},
		"sender": {"login": "dana"}
	}`)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", "it-1")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, orch.Shutdown(shutdownCtx))

	analysis, err := store.GetAnalysisByRepoAndPR(ctx, database.GetAnalysisByRepoAndPRParams{RepositoryID: repoID, PrNumber: 7})
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusCompleted), analysis.Status)
	assert.True(t, analysis.CompletedAt.Valid)
	assert.Equal(t, int32(2), analysis.FilesAnalyzed)
	assert.Equal(t, int32(1), analysis.TotalVulnerabilities)
	assert.Equal(t, int32(1), analysis.CriticalCount)
	assert.Equal(t, int32(1), analysis.TotalStyleIssues)
	assert.JSONEq(t, `{"pep8": 1}`, string(analysis.StyleCategories))

	files, err := store.ListAnalysisFileResults(ctx, analysis.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "app/db.py", files[0].FilePath)

	events, err := store.ListWebhookEventsByRepo(ctx, database.ListWebhookEventsByRepoParams{RepositoryID: repoID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "it-1", events[0].DeliveryID)

	assert.Equal(t, int32(1), commentCount.Load(), "one batched security comment for the file with findings")
}
