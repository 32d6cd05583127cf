// internal/vault/migrate.go
package vault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"codesentry/internal/database"
)

// TokenStore is the subset of database.Querier needed to migrate stored tokens.
type TokenStore interface {
	ListUsersWithTokens(ctx context.Context) ([]database.User, error)
	UpdateUserToken(ctx context.Context, arg database.UpdateUserTokenParams) error
}

// MigrationReport summarizes a token migration.
type MigrationReport struct {
	Encrypted int
	Skipped   int
	Failed    int
}

// MigratePlaintextTokens encrypts every stored token that is not already encrypted.
// It is safe to run repeatedly. A failure on one user is logged and counted.
func MigratePlaintextTokens(ctx context.Context, store TokenStore, v *Vault, logger *slog.Logger) (MigrationReport, error) {
	var report MigrationReport

	users, err := store.ListUsersWithTokens(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		logger := logger.With("user_id", u.ID, "username", u.GithubUsername)

		if IsEncrypted(u.GithubToken.String) {
			report.Skipped++
			continue
		}

		encrypted, err := v.Encrypt(u.GithubToken.String)
		if err != nil {
			logger.Error("Failed to encrypt token", "error", err)
			report.Failed++
			continue
		}

		err = store.UpdateUserToken(ctx, database.UpdateUserTokenParams{
			ID:          u.ID,
			GithubToken: pgtype.Text{String: encrypted, Valid: true},
		})
		if err != nil {
			logger.Error("Failed to store encrypted token", "error", err)
			report.Failed++
			continue
		}
		logger.Info("Token encrypted")
		report.Encrypted++
	}

	return report, nil
}
