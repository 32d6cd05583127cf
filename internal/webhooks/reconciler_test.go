// internal/webhooks/reconciler_test.go
package webhooks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"codesentry/internal/database"
)

func TestReconciler_RunCycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("registers missing hooks for every user", func(t *testing.T) {
		api := newFakeHooksAPI()
		manager, store, v := setupManager(t, api)

		store.On("ListUsersWithTokens", mock.Anything).Return([]database.User{encryptedUser(t, v, 1), encryptedUser(t, v, 2)}, nil)
		store.On("GetUserByID", mock.Anything, int64(1)).Return(encryptedUser(t, v, 1), nil)
		store.On("GetUserByID", mock.Anything, int64(2)).Return(encryptedUser(t, v, 2), nil)
		store.On("ListRepositoriesWithoutWebhook", mock.Anything, int64(1)).Return([]database.Repository{
			{ID: 10, UserID: 1, FullName: "octo/app"},
		}, nil)
		store.On("ListRepositoriesWithoutWebhook", mock.Anything, int64(2)).Return([]database.Repository{}, nil)
		store.On("UpdateRepositoryWebhook", mock.Anything, mock.AnythingOfType("database.UpdateRepositoryWebhookParams")).Return(nil)

		registered := NewReconciler(store, manager, time.Hour, logger).runCycle(context.Background())

		assert.Equal(t, 1, registered)
		assert.Equal(t, 1, api.creates)
		store.AssertExpectations(t)
	})

	t.Run("a failing user does not stop the others", func(t *testing.T) {
		api := newFakeHooksAPI()
		api.status["octo/locked"] = http.StatusUnauthorized
		manager, store, v := setupManager(t, api)

		store.On("ListUsersWithTokens", mock.Anything).Return([]database.User{encryptedUser(t, v, 1), encryptedUser(t, v, 2)}, nil)
		store.On("GetUserByID", mock.Anything, int64(1)).Return(database.User{}, errors.New("connection reset"))
		store.On("GetUserByID", mock.Anything, int64(2)).Return(encryptedUser(t, v, 2), nil)
		store.On("ListRepositoriesWithoutWebhook", mock.Anything, int64(2)).Return([]database.Repository{
			{ID: 20, UserID: 2, FullName: "octo/locked"},
			{ID: 21, UserID: 2, FullName: "octo/web"},
		}, nil)
		store.On("UpdateRepositoryWebhook", mock.Anything, mock.AnythingOfType("database.UpdateRepositoryWebhookParams")).Return(nil)

		registered := NewReconciler(store, manager, time.Hour, logger).runCycle(context.Background())

		assert.Equal(t, 1, registered)
		store.AssertNumberOfCalls(t, "UpdateRepositoryWebhook", 1)
	})

	t.Run("listing failure ends the cycle", func(t *testing.T) {
		manager, store, _ := setupManager(t, newFakeHooksAPI())
		store.On("ListUsersWithTokens", mock.Anything).Return(nil, errors.New("db down"))

		assert.Equal(t, 0, NewReconciler(store, manager, time.Hour, logger).runCycle(context.Background()))
	})
}

func TestReconciler_StartStopsOnCancel(t *testing.T) {
	manager, store, _ := setupManager(t, newFakeHooksAPI())
	listed := make(chan struct{}, 1)
	store.On("ListUsersWithTokens", mock.Anything).Return([]database.User{}, nil).Run(func(mock.Arguments) {
		select {
		case listed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReconciler(store, manager, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))).Start(ctx)
		close(done)
	}()

	select {
	case <-listed:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not run an initial cycle")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}
