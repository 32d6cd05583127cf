// cmd/admin/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"codesentry/internal/config"
	"codesentry/internal/database"
	"codesentry/internal/vault"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "codesentry-admin",
	Short: "Operator tasks for the codesentry service",
	Long: `codesentry-admin runs one-off maintenance against the codesentry database:
generating encryption keys, encrypting stored access tokens, applying schema
migrations, and managing repository webhooks.

Configuration is read from the same environment variables (or .env file)
as the service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(encryptTokensCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(webhooksCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// env bundles what database-backed subcommands need.
type env struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	store  database.Store
	vault  *vault.Vault
	logger *slog.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	logger := newLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &env{
		cfg:    cfg,
		pool:   pool,
		store:  database.NewStore(pool),
		vault:  v,
		logger: logger,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
}
