// cmd/admin/keygen.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codesentry/internal/vault"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new random ENCRYPTION_KEY",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := vault.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
