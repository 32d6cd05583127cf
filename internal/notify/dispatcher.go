// internal/notify/dispatcher.go
package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"codesentry/internal/config"
	"codesentry/internal/model"
)

const defaultSendTimeout = 15 * time.Second

// Dispatcher sends the end-of-run summary email. Every failure is logged and
// swallowed; nothing here affects the run outcome.
type Dispatcher struct {
	enabled      bool
	mailer       Mailer
	defaultEmail string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewDispatcher creates a Dispatcher. It is disabled when SMTP credentials are absent.
func NewDispatcher(cfg config.SMTPConfig, mailer Mailer, logger *slog.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	d := &Dispatcher{
		enabled:      cfg.Enabled() && mailer != nil,
		mailer:       mailer,
		defaultEmail: cfg.DefaultReviewerEmail,
		timeout:      timeout,
		logger:       logger,
	}
	if !d.enabled {
		logger.Info("Email notifications disabled: SMTP credentials not configured")
	}
	return d
}

// Enabled reports whether notifications will be sent.
func (d *Dispatcher) Enabled() bool {
	return d.enabled
}

// Notify resolves recipients and sends each one the summary independently.
// It returns the number of messages delivered.
func (d *Dispatcher) Notify(ctx context.Context, lookup UserLookup, pr model.PullRequest, agg model.Aggregate) int {
	if !d.enabled {
		return 0
	}

	reviewers := NewResolver(lookup, d.defaultEmail, d.logger).ResolveReviewers(ctx, pr)
	if len(reviewers) == 0 {
		d.logger.Info("No notification recipients resolved", "repository", pr.FullName(), "pr", pr.Number)
		return 0
	}

	subject := Subject(pr, agg)
	body, err := RenderSummary(pr, agg)
	if err != nil {
		d.logger.Error("Failed to render notification email", "error", err)
		return 0
	}

	sent := make([]bool, len(reviewers))
	g, gctx := errgroup.WithContext(ctx)
	for i, reviewer := range reviewers {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()

			if err := d.mailer.Send(sendCtx, reviewer.Email, subject, body); err != nil {
				d.logger.Error("Failed to send notification email", "username", reviewer.Username, "email", reviewer.Email, "error", err)
				return nil
			}
			sent[i] = true
			d.logger.Info("Notification email sent", "username", reviewer.Username, "email", reviewer.Email, "pr", pr.Number)
			return nil
		})
	}
	_ = g.Wait()

	delivered := 0
	for _, ok := range sent {
		if ok {
			delivered++
		}
	}
	return delivered
}
