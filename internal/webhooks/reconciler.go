// internal/webhooks/reconciler.go
package webhooks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"codesentry/internal/database"
)

// Number of users reconciled in parallel. Each user fans out further per repository.
const reconcileConcurrency = 2

// Reconciler periodically retries hook registration for every user with a
// stored token, so repositories whose registration failed heal on their own.
type Reconciler struct {
	store    database.Querier
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

func NewReconciler(store database.Querier, manager *Manager, interval time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		manager:  manager,
		interval: interval,
		logger:   logger.With("component", "webhook_reconciler"),
	}
}

// Start runs a reconcile cycle immediately and then on every tick until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting webhook reconciler", "interval", r.interval.String(), "concurrency", reconcileConcurrency)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			r.runCycle(ctx)
		case <-ctx.Done():
			r.logger.Info("Webhook reconciler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runCycle retries registration for all users and returns how many hooks were created.
func (r *Reconciler) runCycle(ctx context.Context) int {
	users, err := r.store.ListUsersWithTokens(ctx)
	if err != nil {
		r.logger.Error("Failed to list users for reconcile", "error", err)
		return 0
	}

	results := make([]int, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for i, u := range users {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			report, err := r.manager.RetryRegistrationsForUser(gctx, u.ID)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					r.logger.Error("Failed to reconcile user webhooks", "user_id", u.ID, "error", err)
				}
				return nil
			}
			if report.TokenInvalid() {
				r.logger.Warn("User token rejected during reconcile; re-authentication required", "user_id", u.ID)
			}
			results[i] = len(report.Successes)
			return nil
		})
	}
	_ = g.Wait()

	registered := 0
	for _, n := range results {
		registered += n
	}
	r.logger.Info("Reconcile cycle finished", "users", len(users), "registered", registered)
	return registered
}
