package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finanzas/internal/auth"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a session signing key",
		Long: `Generate a fresh Ed25519 key for signing session tokens, printed in the
form expected by TOKEN_SECRET_HEX. Rotating the key ends every session.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TOKEN_SECRET_HEX=%s\n", auth.NewSecretKeyHex())
		},
	}
}
