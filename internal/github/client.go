// internal/github/client.go
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	custom_errors "codesentry/internal/errors"
	"codesentry/internal/model"
)

const (
	defaultMaxRetries = 3
	retryWaitMin      = 500 * time.Millisecond
	retryWaitMax      = 5 * time.Second
	pushEventPageSize = 30
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// Factory builds per-token clients that share one retrying transport.
type Factory struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewFactory creates a Factory. An empty baseURL targets api.github.com.
func NewFactory(baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Factory {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.Logger = logger
	rc.CheckRetry = checkRetry
	// Hand the final response back to go-github so it can build an ErrorResponse.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = timeout

	return &Factory{
		baseURL: baseURL,
		http:    rc.StandardClient(),
		logger:  logger,
	}
}

// ForToken returns a Client authenticated with token.
func (f *Factory) ForToken(token string) (*Client, error) {
	return newClient(f.http, f.baseURL, token, f.logger)
}

func newClient(base *http.Client, baseURL, token string, logger *slog.Logger) (*Client, error) {
	httpClient := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	}

	gh := github.NewClient(httpClient)
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
	}

	return &Client{
		gh:     gh,
		logger: logger,
	}, nil
}

type noRetryKey struct{}

// withoutRetry marks a request as unsafe to repeat, e.g. one that creates a resource.
func withoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if v, _ := ctx.Value(noRetryKey{}).(bool); v {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// ListHooks returns every webhook configured on a repository.
func (c *Client) ListHooks(ctx context.Context, owner, repo string) ([]model.WebhookRegistration, error) {
	var hooks []model.WebhookRegistration
	opts := &github.ListOptions{PerPage: 100}

	for {
		page, resp, err := c.gh.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return nil, wrapError("list hooks", resp, err)
		}
		for _, h := range page {
			hooks = append(hooks, model.WebhookRegistration{
				RepositoryFullName: owner + "/" + repo,
				WebhookID:          h.GetID(),
				CallbackURL:        h.GetConfig().GetURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return hooks, nil
}

// CreateHook creates a JSON webhook subscribed to pull request events only.
func (c *Client) CreateHook(ctx context.Context, owner, repo, callbackURL, secret string) (int64, error) {
	cfg := &github.HookConfig{
		URL:         github.String(callbackURL),
		ContentType: github.String("json"),
		InsecureSSL: github.String("0"),
	}
	if secret != "" {
		cfg.Secret = github.String(secret)
	}

	hook, resp, err := c.gh.Repositories.CreateHook(withoutRetry(ctx), owner, repo, &github.Hook{
		Name:   github.String("web"),
		Active: github.Bool(true),
		Events: []string{"pull_request"},
		Config: cfg,
	})
	if err != nil {
		return 0, wrapError("create hook", resp, err)
	}
	return hook.GetID(), nil
}

// DeleteHook removes a webhook from a repository.
func (c *Client) DeleteHook(ctx context.Context, owner, repo string, id int64) error {
	resp, err := c.gh.Repositories.DeleteHook(ctx, owner, repo, id)
	if err != nil {
		return wrapError("delete hook", resp, err)
	}
	return nil
}

// ListPullRequestFiles fetches every file changed by a pull request.
// It handles API pagination transparently.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.ChangedFile, error) {
	var files []model.ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		c.logger.Debug("Fetching pull request files page", "owner", owner, "repo", repo, "pr", number, "page", opts.Page)

		page, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, wrapError("list pull request files", resp, err)
		}
		for _, f := range page {
			files = append(files, toInternalChangedFile(f))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// GetRawContent downloads a file from its raw URL.
func (c *Client) GetRawContent(ctx context.Context, rawURL string) (string, error) {
	req, err := c.gh.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.raw")

	var buf bytes.Buffer
	resp, err := c.gh.Do(ctx, req, &buf)
	if err != nil {
		return "", wrapError("get raw content", resp, err)
	}
	return buf.String(), nil
}

// CreateComment posts a Markdown comment on a pull request conversation.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error) {
	comment, resp, err := c.gh.Issues.CreateComment(withoutRetry(ctx), owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return 0, wrapError("create comment", resp, err)
	}
	return comment.GetID(), nil
}

// GetUserEmail returns the public profile email of a user, or "" if hidden.
func (c *Client) GetUserEmail(ctx context.Context, login string) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, login)
	if err != nil {
		return "", wrapError("get user", resp, err)
	}
	return user.GetEmail(), nil
}

// ListPushCommitEmails returns commit author emails from a user's recent public push events.
func (c *Client) ListPushCommitEmails(ctx context.Context, login string) ([]string, error) {
	events, resp, err := c.gh.Activity.ListEventsPerformedByUser(ctx, login, true, &github.ListOptions{PerPage: pushEventPageSize})
	if err != nil {
		return nil, wrapError("list user events", resp, err)
	}

	var emails []string
	for _, e := range events {
		if e.GetType() != "PushEvent" {
			continue
		}
		payload, err := e.ParsePayload()
		if err != nil {
			c.logger.Debug("Skipping unparsable push event", "login", login, "error", err)
			continue
		}
		push, ok := payload.(*github.PushEvent)
		if !ok {
			continue
		}
		for _, commit := range push.Commits {
			if email := commit.GetAuthor().GetEmail(); email != "" {
				emails = append(emails, email)
			}
		}
	}
	return emails, nil
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: fullName}
	}
	return parts[0], parts[1], nil
}

// wrapError attaches the HTTP status of a failed call so callers can classify it.
func wrapError(op string, resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return &custom_errors.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &custom_errors.RemoteError{Op: op, StatusCode: ghErr.Response.StatusCode, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// toInternalChangedFile translates a github.CommitFile object to our internal model.ChangedFile.
func toInternalChangedFile(f *github.CommitFile) model.ChangedFile {
	return model.ChangedFile{
		Filename: f.GetFilename(),
		Status:   f.GetStatus(),
		Patch:    f.GetPatch(),
		RawURL:   f.GetRawURL(),
	}
}
