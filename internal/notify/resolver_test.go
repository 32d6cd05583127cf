// internal/notify/resolver_test.go
package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"codesentry/internal/model"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) GetUserEmail(ctx context.Context, login string) (string, error) {
	args := m.Called(ctx, login)
	return args.String(0), args.Error(1)
}

func (m *MockLookup) ListPushCommitEmails(ctx context.Context, login string) ([]string, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveReviewers(t *testing.T) {
	ctx := context.Background()

	t.Run("requested reviewer without public or commit email gets noreply alias", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("GetUserEmail", ctx, "alice").Return("", nil)
		lookup.On("ListPushCommitEmails", ctx, "alice").Return([]string{"alice@users.noreply.github.com"}, nil)

		got := NewResolver(lookup, "foo@x.com", discardLogger()).ResolveReviewers(ctx, model.PullRequest{
			Owner:              "bob",
			RequestedReviewers: []string{"alice"},
		})

		assert.Equal(t, []model.Reviewer{{Username: "alice", Email: "alice@users.noreply.github.com"}}, got)
		lookup.AssertNotCalled(t, "GetUserEmail", ctx, "bob")
	})

	t.Run("public profile email wins", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("GetUserEmail", ctx, "alice").Return("alice@corp.example", nil)

		got := NewResolver(lookup, "", discardLogger()).ResolveReviewers(ctx, model.PullRequest{RequestedReviewers: []string{"alice"}})

		assert.Equal(t, "alice@corp.example", got[0].Email)
		lookup.AssertNotCalled(t, "ListPushCommitEmails", mock.Anything, mock.Anything)
	})

	t.Run("commit email used when profile hides it", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("GetUserEmail", ctx, "alice").Return("", errors.New("boom"))
		lookup.On("ListPushCommitEmails", ctx, "alice").Return([]string{"1+alice@users.noreply.github.com", "alice@home.example"}, nil)

		got := NewResolver(lookup, "", discardLogger()).ResolveReviewers(ctx, model.PullRequest{RequestedReviewers: []string{"alice"}})

		assert.Equal(t, "alice@home.example", got[0].Email)
	})

	t.Run("falls back to repository owner", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("GetUserEmail", ctx, "bob").Return("bob@example.com", nil)

		got := NewResolver(lookup, "foo@x.com", discardLogger()).ResolveReviewers(ctx, model.PullRequest{Owner: "bob"})

		assert.Equal(t, []model.Reviewer{{Username: "bob", Email: "bob@example.com"}}, got)
	})

	t.Run("falls back to the configured default", func(t *testing.T) {
		lookup := new(MockLookup)

		got := NewResolver(lookup, "foo@x.com", discardLogger()).ResolveReviewers(ctx, model.PullRequest{})

		assert.Equal(t, []model.Reviewer{{Username: DefaultReviewerUsername, Email: "foo@x.com"}}, got)
		lookup.AssertExpectations(t)
	})

	t.Run("nothing configured resolves to no recipients", func(t *testing.T) {
		got := NewResolver(new(MockLookup), "", discardLogger()).ResolveReviewers(ctx, model.PullRequest{})
		assert.Empty(t, got)
	})

	t.Run("duplicate emails are collapsed", func(t *testing.T) {
		lookup := new(MockLookup)
		lookup.On("GetUserEmail", ctx, "alice").Return("team@example.com", nil)
		lookup.On("GetUserEmail", ctx, "carol").Return("Team@example.com", nil)

		got := NewResolver(lookup, "", discardLogger()).ResolveReviewers(ctx, model.PullRequest{RequestedReviewers: []string{"alice", "carol"}})

		assert.Len(t, got, 1)
	})
}
