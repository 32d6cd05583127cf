// internal/notify/resolver.go
package notify

import (
	"context"
	"log/slog"
	"strings"

	"codesentry/internal/model"
)

// DefaultReviewerUsername labels the configured fallback recipient.
const DefaultReviewerUsername = "default"

// UserLookup is the subset of provider calls used to find a user's email.
type UserLookup interface {
	GetUserEmail(ctx context.Context, login string) (string, error)
	ListPushCommitEmails(ctx context.Context, login string) ([]string, error)
}

// NoreplyAddress is the provider's synthesized alias for a username.
func NoreplyAddress(login string) string {
	return login + "@users.noreply.github.com"
}

// Resolver maps pull request participants to email recipients.
type Resolver struct {
	lookup       UserLookup
	defaultEmail string
	logger       *slog.Logger
}

// NewResolver creates a Resolver. defaultEmail may be empty.
func NewResolver(lookup UserLookup, defaultEmail string, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, defaultEmail: defaultEmail, logger: logger}
}

// ResolveReviewers returns the first non-empty tier of: requested reviewers,
// the repository owner, then the configured default address.
func (r *Resolver) ResolveReviewers(ctx context.Context, pr model.PullRequest) []model.Reviewer {
	if reviewers := r.resolveAll(ctx, pr.RequestedReviewers); len(reviewers) > 0 {
		return reviewers
	}
	if pr.Owner != "" {
		if reviewers := r.resolveAll(ctx, []string{pr.Owner}); len(reviewers) > 0 {
			return reviewers
		}
	}
	if r.defaultEmail != "" {
		return []model.Reviewer{{Username: DefaultReviewerUsername, Email: r.defaultEmail}}
	}
	return nil
}

func (r *Resolver) resolveAll(ctx context.Context, logins []string) []model.Reviewer {
	var reviewers []model.Reviewer
	seen := make(map[string]bool)
	for _, login := range logins {
		if login == "" {
			continue
		}
		email := r.ResolveEmail(ctx, login)
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		reviewers = append(reviewers, model.Reviewer{Username: login, Email: email})
	}
	return reviewers
}

// ResolveEmail never fails: lookup errors fall through to the noreply alias.
func (r *Resolver) ResolveEmail(ctx context.Context, login string) string {
	email, err := r.lookup.GetUserEmail(ctx, login)
	if err != nil {
		r.logger.Warn("Failed to fetch user profile", "login", login, "error", err)
	} else if email != "" {
		return email
	}

	commitEmails, err := r.lookup.ListPushCommitEmails(ctx, login)
	if err != nil {
		r.logger.Warn("Failed to fetch user events", "login", login, "error", err)
	}
	for _, e := range commitEmails {
		if e != "" && !strings.Contains(strings.ToLower(e), "noreply") {
			return e
		}
	}

	return NoreplyAddress(login)
}
