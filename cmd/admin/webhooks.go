// cmd/admin/webhooks.go
package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"codesentry/internal/github"
	"codesentry/internal/webhooks"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Manage pull request webhooks on tracked repositories",
}

var webhooksRegisterCmd = &cobra.Command{
	Use:   "register <repository-id>",
	Short: "Register the pull request webhook for a tracked repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhooksRegister,
}

var webhooksUnregisterCmd = &cobra.Command{
	Use:   "unregister <repository-id>",
	Short: "Remove the webhook of a tracked repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhooksUnregister,
}

var webhooksRetryCmd = &cobra.Command{
	Use:   "retry <user-id>",
	Short: "Retry webhook registration for every repository of a user that has none",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhooksRetry,
}

func init() {
	webhooksCmd.AddCommand(webhooksRegisterCmd)
	webhooksCmd.AddCommand(webhooksUnregisterCmd)
	webhooksCmd.AddCommand(webhooksRetryCmd)
}

func newManager(e *env) *webhooks.Manager {
	factory := github.NewFactory(e.cfg.Github.APIURL, e.cfg.Github.Timeout, e.cfg.Github.MaxRetries, e.logger)
	return webhooks.NewManager(e.store, factory, e.vault, e.cfg.Webhook.CallbackURL, e.cfg.Webhook.Secret, e.logger)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func runWebhooksRegister(cmd *cobra.Command, args []string) error {
	repoID, err := parseID(args[0], "repository id")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	reg, err := newManager(e).ConnectRepository(ctx, repoID)
	if err != nil {
		return err
	}
	return printJSON(cmd, reg)
}

func runWebhooksUnregister(cmd *cobra.Command, args []string) error {
	repoID, err := parseID(args[0], "repository id")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := newManager(e).DisconnectRepository(ctx, repoID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "repository %d disconnected\n", repoID)
	return nil
}

func runWebhooksRetry(cmd *cobra.Command, args []string) error {
	userID, err := parseID(args[0], "user id")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := newManager(e).RetryRegistrationsForUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, map[string]any{
		"successes":     report.Successes,
		"failures":      report.Failures,
		"token_invalid": report.TokenInvalid(),
	}); err != nil {
		return err
	}
	if report.TokenInvalid() {
		return fmt.Errorf("the access token of user %d was rejected; the user must re-authenticate", userID)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
