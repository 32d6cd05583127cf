// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"codesentry/internal/api"
	"codesentry/internal/comments"
	"codesentry/internal/config"
	"codesentry/internal/database"
	"codesentry/internal/engine"
	"codesentry/internal/github"
	"codesentry/internal/notify"
	"codesentry/internal/orchestrator"
	"codesentry/internal/vault"
	"codesentry/internal/webhooks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	if cfg.Webhook.Secret == "" {
		if cfg.Webhook.RequireSignature {
			logger.Warn("WEBHOOK_SECRET is not set and signatures are required: every webhook delivery will be rejected")
		} else {
			logger.Warn("WEBHOOK_SECRET is not set: webhook signatures will not be verified")
		}
	}

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	version, err := database.Migrate(cfg.MigrationsPath, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully", "version", version)

	// 5. Initialize application components
	store := database.NewStore(dbpool)
	ghFactory := github.NewFactory(cfg.Github.APIURL, cfg.Github.Timeout, cfg.Github.MaxRetries, logger)
	engineClient := engine.NewClient(cfg.Analysis.ServiceURL, logger)
	commentDispatcher := comments.NewDispatcher(cfg.Analysis.LargePRThreshold, cfg.Github.Timeout, logger)

	var notifier orchestrator.Notifier
	if d := notify.NewDispatcher(cfg.SMTP, notify.NewSMTPMailer(cfg.SMTP), logger); d.Enabled() {
		notifier = d
	}

	orch := orchestrator.New(store, v, orchestrator.FromFactory(ghFactory), engineClient, commentDispatcher, notifier, orchestrator.Options{
		Language:       cfg.Analysis.Language,
		Extensions:     cfg.Analysis.FileExtensions,
		SkipPatterns:   cfg.Analysis.SkipPatterns,
		FileTimeout:    cfg.Analysis.FileTimeout,
		Retry:          orchestrator.RetryPolicy{MaxRetries: cfg.Analysis.RetryCount, Delay: cfg.Analysis.RetryDelay},
		InterFileDelay: cfg.Analysis.InterFileDelay,
	}, logger)

	hookManager := webhooks.NewManager(store, ghFactory, v, cfg.Webhook.CallbackURL, cfg.Webhook.Secret, logger)

	router := api.NewRouter(store, orch, hookManager, api.Options{
		WebhookSecret:    cfg.Webhook.Secret,
		RequireSignature: cfg.Webhook.RequireSignature,
		AdminToken:       cfg.AdminAPIToken,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var reconcilerDone chan struct{}
	if cfg.Webhook.ReconcileInterval > 0 {
		reconcilerDone = make(chan struct{})
		reconciler := webhooks.NewReconciler(store, hookManager, cfg.Webhook.ReconcileInterval, logger)
		go func() {
			defer close(reconcilerDone)
			reconciler.Start(ctx)
		}()
	}

	// 6. Start the HTTP server in a separate goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. Wait for shutdown signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Analysis runs still in flight at shutdown were cancelled", "error", err)
	}
	if reconcilerDone != nil {
		select {
		case <-reconcilerDone:
		case <-shutdownCtx.Done():
		}
	}
	logger.Info("Shutdown complete")

	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
