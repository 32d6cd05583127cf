// internal/webhooks/manager.go
package webhooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"

	"codesentry/internal/database"
	custom_errors "codesentry/internal/errors"
	"codesentry/internal/github"
	"codesentry/internal/model"
	"codesentry/internal/vault"
)

const defaultConcurrency = 4

// Failure describes a repository whose hook could not be registered.
type Failure struct {
	RepositoryID int64                       `json:"repository_id"`
	FullName     string                      `json:"full_name"`
	Reason       custom_errors.FailureReason `json:"reason"`
	Error        string                      `json:"error"`
}

// RetryReport is the outcome of RetryRegistrationsForUser.
type RetryReport struct {
	Successes []model.WebhookRegistration `json:"successes"`
	Failures  []Failure                   `json:"failures"`
}

// TokenInvalid reports whether any failure was caused by a rejected token.
func (r RetryReport) TokenInvalid() bool {
	for _, f := range r.Failures {
		if f.Reason == custom_errors.ReasonTokenInvalid {
			return true
		}
	}
	return false
}

// Manager registers and removes repository webhooks pointing at this service.
type Manager struct {
	store       database.Store
	factory     *github.Factory
	vault       *vault.Vault
	callbackURL string
	secret      string
	concurrency int
	logger      *slog.Logger
}

func NewManager(store database.Store, factory *github.Factory, v *vault.Vault, callbackURL, secret string, logger *slog.Logger) *Manager {
	return &Manager{
		store:       store,
		factory:     factory,
		vault:       v,
		callbackURL: callbackURL,
		secret:      secret,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// Register ensures a pull_request hook for the callback URL exists on the repository.
// An existing hook is returned unchanged with AlreadyExisted set.
func (m *Manager) Register(ctx context.Context, repoFullName, token string) (model.WebhookRegistration, error) {
	owner, name, err := github.SplitFullName(repoFullName)
	if err != nil {
		return model.WebhookRegistration{}, err
	}
	client, err := m.factory.ForToken(token)
	if err != nil {
		return model.WebhookRegistration{}, err
	}

	hooks, err := client.ListHooks(ctx, owner, name)
	if err != nil {
		return model.WebhookRegistration{}, err
	}
	for _, h := range hooks {
		if h.CallbackURL == m.callbackURL {
			m.logger.Info("Webhook already registered", "repository", repoFullName, "webhook_id", h.WebhookID)
			h.AlreadyExisted = true
			return h, nil
		}
	}

	id, err := client.CreateHook(ctx, owner, name, m.callbackURL, m.secret)
	if err != nil {
		return model.WebhookRegistration{}, err
	}
	m.logger.Info("Webhook registered", "repository", repoFullName, "webhook_id", id)

	return model.WebhookRegistration{
		RepositoryFullName: repoFullName,
		WebhookID:          id,
		CallbackURL:        m.callbackURL,
	}, nil
}

// Unregister deletes a hook. Failures are logged and never returned.
func (m *Manager) Unregister(ctx context.Context, repoFullName string, webhookID int64, token string) {
	owner, name, err := github.SplitFullName(repoFullName)
	if err != nil {
		m.logger.Error("Cannot unregister webhook", "repository", repoFullName, "error", err)
		return
	}
	client, err := m.factory.ForToken(token)
	if err != nil {
		m.logger.Error("Cannot unregister webhook", "repository", repoFullName, "error", err)
		return
	}
	if err := client.DeleteHook(ctx, owner, name, webhookID); err != nil {
		m.logger.Warn("Failed to delete webhook", "repository", repoFullName, "webhook_id", webhookID, "error", err)
		return
	}
	m.logger.Info("Webhook deleted", "repository", repoFullName, "webhook_id", webhookID)
}

// RetryRegistrationsForUser registers hooks for every active repository of the
// user that has none stored. A token that cannot be decrypted aborts the call.
func (m *Manager) RetryRegistrationsForUser(ctx context.Context, userID int64) (RetryReport, error) {
	token, err := m.userToken(ctx, userID)
	if err != nil {
		return RetryReport{}, err
	}

	repos, err := m.store.ListRepositoriesWithoutWebhook(ctx, userID)
	if err != nil {
		return RetryReport{}, fmt.Errorf("list repositories without webhook: %w", err)
	}

	var (
		mu     sync.Mutex
		report RetryReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, repo := range repos {
		g.Go(func() error {
			reg, err := m.Register(gctx, repo.FullName, token)
			if err == nil {
				err = m.store.UpdateRepositoryWebhook(gctx, database.UpdateRepositoryWebhookParams{
					ID:        repo.ID,
					WebhookID: pgtype.Int8{Int64: reg.WebhookID, Valid: true},
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := custom_errors.Classify(err)
				m.logger.Warn("Webhook registration retry failed", "repository", repo.FullName, "reason", reason, "error", err)
				report.Failures = append(report.Failures, Failure{
					RepositoryID: repo.ID,
					FullName:     repo.FullName,
					Reason:       reason,
					Error:        err.Error(),
				})
				return nil
			}
			report.Successes = append(report.Successes, reg)
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("Webhook registration retry finished", "user_id", userID, "successes", len(report.Successes), "failures", len(report.Failures))
	return report, nil
}

// ConnectRepository registers the hook for a tracked repository and stores its id.
func (m *Manager) ConnectRepository(ctx context.Context, repositoryID int64) (model.WebhookRegistration, error) {
	repo, err := m.store.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return model.WebhookRegistration{}, fmt.Errorf("get repository %d: %w", repositoryID, err)
	}
	token, err := m.userToken(ctx, repo.UserID)
	if err != nil {
		return model.WebhookRegistration{}, err
	}

	reg, err := m.Register(ctx, repo.FullName, token)
	if err != nil {
		return model.WebhookRegistration{}, err
	}
	if err := m.store.UpdateRepositoryWebhook(ctx, database.UpdateRepositoryWebhookParams{
		ID:        repo.ID,
		WebhookID: pgtype.Int8{Int64: reg.WebhookID, Valid: true},
	}); err != nil {
		return model.WebhookRegistration{}, fmt.Errorf("store webhook id: %w", err)
	}
	return reg, nil
}

// DisconnectRepository removes the remote hook when possible and always clears
// the stored id.
func (m *Manager) DisconnectRepository(ctx context.Context, repositoryID int64) error {
	repo, err := m.store.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return fmt.Errorf("get repository %d: %w", repositoryID, err)
	}
	if !repo.WebhookID.Valid {
		return nil
	}

	token, err := m.userToken(ctx, repo.UserID)
	if err != nil {
		m.logger.Warn("Skipping remote webhook removal", "repository", repo.FullName, "error", err)
	} else {
		m.Unregister(ctx, repo.FullName, repo.WebhookID.Int64, token)
	}

	return m.store.UpdateRepositoryWebhook(ctx, database.UpdateRepositoryWebhookParams{ID: repo.ID})
}

func (m *Manager) userToken(ctx context.Context, userID int64) (string, error) {
	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user %d: %w", userID, err)
	}
	if !user.GithubToken.Valid || user.GithubToken.String == "" {
		return "", custom_errors.ErrNoToken
	}
	token, err := m.vault.Decrypt(user.GithubToken.String)
	if err != nil {
		return "", fmt.Errorf("decrypt token for user %d: %w", userID, err)
	}
	return token, nil
}

