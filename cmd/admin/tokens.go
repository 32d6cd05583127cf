// cmd/admin/tokens.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codesentry/internal/vault"
)

var encryptTokensCmd = &cobra.Command{
	Use:   "encrypt-tokens",
	Short: "Encrypt every stored access token that is still plaintext",
	Long: `encrypt-tokens rewrites plaintext GitHub access tokens in place using
ENCRYPTION_KEY. Tokens that are already encrypted are skipped, so the
command can be re-run safely.`,
	Args: cobra.NoArgs,
	RunE: runEncryptTokens,
}

func runEncryptTokens(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := vault.MigratePlaintextTokens(ctx, e.store, e.vault, e.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "encrypted: %d\n", report.Encrypted)
	fmt.Fprintf(out, "skipped:   %d\n", report.Skipped)
	fmt.Fprintf(out, "failed:    %d\n", report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d tokens could not be encrypted", report.Failed)
	}
	return nil
}
