// internal/webhooks/manager_test.go
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"codesentry/internal/database"
	"codesentry/internal/database/dbtest"
	custom_errors "codesentry/internal/errors"
	"codesentry/internal/github"
	"codesentry/internal/vault"
)

const (
	testCallbackURL = "https://codesentry.example.com/webhooks/github"
	testSecret      = "s3cret"
	testToken       = "gho_test"
)

type fakeHook struct {
	ID     int64                  `json:"id"`
	Events []string               `json:"events"`
	Config map[string]interface{} `json:"config"`
}

// fakeHooksAPI keeps hooks in memory per repository.
type fakeHooksAPI struct {
	mu        sync.Mutex
	nextID    int64
	hooks     map[string][]fakeHook
	creates   int
	status    map[string]int
	deleted   []int64
	deleteErr bool
}

func newFakeHooksAPI() *fakeHooksAPI {
	return &fakeHooksAPI{nextID: 100, hooks: map[string][]fakeHook{}, status: map[string]int{}}
}

func (f *fakeHooksAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/{owner}/{repo}/hooks", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("owner") + "/" + r.PathValue("repo")
		f.mu.Lock()
		defer f.mu.Unlock()
		if code, ok := f.status[key]; ok {
			w.WriteHeader(code)
			fmt.Fprintln(w, `{"message": "failure"}`)
			return
		}
		hooks := f.hooks[key]
		if hooks == nil {
			hooks = []fakeHook{}
		}
		json.NewEncoder(w).Encode(hooks)
	})
	mux.HandleFunc("POST /api/v3/repos/{owner}/{repo}/hooks", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("owner") + "/" + r.PathValue("repo")
		var hook fakeHook
		if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		f.creates++
		hook.ID = f.nextID
		f.hooks[key] = append(f.hooks[key], hook)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(hook)
	})
	mux.HandleFunc("DELETE /api/v3/repos/{owner}/{repo}/hooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.deleteErr {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
			return
		}
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func setupManager(t *testing.T, api *fakeHooksAPI) (*Manager, *dbtest.MockStore, *vault.Vault) {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := vault.New(strings.Repeat("ab", 32))
	require.NoError(t, err)
	store := new(dbtest.MockStore)
	factory := github.NewFactory(server.URL, 5*time.Second, 0, logger)

	return NewManager(store, factory, v, testCallbackURL, testSecret, logger), store, v
}

func encryptedUser(t *testing.T, v *vault.Vault, id int64) database.User {
	t.Helper()
	enc, err := v.Encrypt(testToken)
	require.NoError(t, err)
	return database.User{ID: id, GithubToken: pgtype.Text{String: enc, Valid: true}}
}

func TestManager_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("registering twice returns the same hook", func(t *testing.T) {
		api := newFakeHooksAPI()
		manager, _, _ := setupManager(t, api)

		first, err := manager.Register(ctx, "octo/app", testToken)
		require.NoError(t, err)
		assert.False(t, first.AlreadyExisted)

		second, err := manager.Register(ctx, "octo/app", testToken)
		require.NoError(t, err)
		assert.True(t, second.AlreadyExisted)
		assert.Equal(t, first.WebhookID, second.WebhookID)
		assert.Equal(t, 1, api.creates)

		hook := api.hooks["octo/app"][0]
		assert.Equal(t, []string{"pull_request"}, hook.Events)
		assert.Equal(t, testCallbackURL, hook.Config["url"])
		assert.Equal(t, testSecret, hook.Config["secret"])
	})

	t.Run("hooks for other endpoints are ignored", func(t *testing.T) {
		api := newFakeHooksAPI()
		api.hooks["octo/app"] = []fakeHook{{ID: 7, Config: map[string]interface{}{"url": "https://ci.example.com/hook"}}}
		manager, _, _ := setupManager(t, api)

		reg, err := manager.Register(ctx, "octo/app", testToken)

		require.NoError(t, err)
		assert.False(t, reg.AlreadyExisted)
		assert.NotEqual(t, int64(7), reg.WebhookID)
		assert.Len(t, api.hooks["octo/app"], 2)
	})

	t.Run("rejects malformed repository names", func(t *testing.T) {
		manager, _, _ := setupManager(t, newFakeHooksAPI())

		_, err := manager.Register(ctx, "not-a-repo", testToken)

		var formatErr *custom_errors.ErrInvalidRepoFormat
		assert.ErrorAs(t, err, &formatErr)
	})
}

func TestManager_Unregister(t *testing.T) {
	t.Run("remote failure is swallowed", func(t *testing.T) {
		api := newFakeHooksAPI()
		api.deleteErr = true
		manager, _, _ := setupManager(t, api)

		assert.NotPanics(t, func() {
			manager.Unregister(context.Background(), "octo/app", 42, testToken)
		})
		assert.Empty(t, api.deleted)
	})
}

func TestManager_RetryRegistrationsForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies failures and stores successful ids", func(t *testing.T) {
		api := newFakeHooksAPI()
		api.status["octo/locked"] = http.StatusForbidden
		api.status["octo/broken"] = http.StatusUnprocessableEntity
		manager, store, v := setupManager(t, api)

		store.On("GetUserByID", ctx, int64(1)).Return(encryptedUser(t, v, 1), nil)
		store.On("ListRepositoriesWithoutWebhook", ctx, int64(1)).Return([]database.Repository{
			{ID: 10, UserID: 1, FullName: "octo/app"},
			{ID: 11, UserID: 1, FullName: "octo/locked"},
			{ID: 12, UserID: 1, FullName: "octo/broken"},
		}, nil)
		store.On("UpdateRepositoryWebhook", mock.Anything, mock.MatchedBy(func(p database.UpdateRepositoryWebhookParams) bool {
			return p.ID == 10 && p.WebhookID.Valid
		})).Return(nil).Once()

		report, err := manager.RetryRegistrationsForUser(ctx, 1)

		require.NoError(t, err)
		require.Len(t, report.Successes, 1)
		assert.Equal(t, "octo/app", report.Successes[0].RepositoryFullName)
		require.Len(t, report.Failures, 2)
		reasons := map[string]custom_errors.FailureReason{}
		for _, f := range report.Failures {
			reasons[f.FullName] = f.Reason
		}
		assert.Equal(t, custom_errors.ReasonTokenInvalid, reasons["octo/locked"])
		assert.Equal(t, custom_errors.ReasonOther, reasons["octo/broken"])
		assert.True(t, report.TokenInvalid())
		store.AssertExpectations(t)
	})

	t.Run("undecryptable token aborts before any remote call", func(t *testing.T) {
		api := newFakeHooksAPI()
		manager, store, _ := setupManager(t, api)

		store.On("GetUserByID", ctx, int64(2)).Return(database.User{ID: 2, GithubToken: pgtype.Text{String: "plaintext-token", Valid: true}}, nil)

		_, err := manager.RetryRegistrationsForUser(ctx, 2)

		var malformed *custom_errors.MalformedCredentialError
		assert.ErrorAs(t, err, &malformed)
		store.AssertNotCalled(t, "ListRepositoriesWithoutWebhook", mock.Anything, mock.Anything)
	})

	t.Run("user without token", func(t *testing.T) {
		manager, store, _ := setupManager(t, newFakeHooksAPI())
		store.On("GetUserByID", ctx, int64(3)).Return(database.User{ID: 3}, nil)

		_, err := manager.RetryRegistrationsForUser(ctx, 3)

		assert.ErrorIs(t, err, custom_errors.ErrNoToken)
	})
}

func TestManager_ConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	api := newFakeHooksAPI()
	manager, store, v := setupManager(t, api)
	user := encryptedUser(t, v, 1)

	store.On("GetRepositoryByID", ctx, int64(10)).Return(database.Repository{ID: 10, UserID: 1, FullName: "octo/app"}, nil).Once()
	store.On("GetUserByID", ctx, int64(1)).Return(user, nil)
	store.On("UpdateRepositoryWebhook", ctx, mock.MatchedBy(func(p database.UpdateRepositoryWebhookParams) bool {
		return p.ID == 10 && p.WebhookID.Valid
	})).Return(nil).Once()

	reg, err := manager.ConnectRepository(ctx, 10)
	require.NoError(t, err)

	store.On("GetRepositoryByID", ctx, int64(10)).Return(database.Repository{
		ID: 10, UserID: 1, FullName: "octo/app", WebhookID: pgtype.Int8{Int64: reg.WebhookID, Valid: true},
	}, nil).Once()
	store.On("UpdateRepositoryWebhook", ctx, database.UpdateRepositoryWebhookParams{ID: 10}).Return(nil).Once()

	require.NoError(t, manager.DisconnectRepository(ctx, 10))
	assert.Equal(t, []int64{reg.WebhookID}, api.deleted)
	store.AssertExpectations(t)
}
