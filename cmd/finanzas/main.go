package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:   "finanzas",
		Short: "Budgeting dashboard server",
		Long: `finanzas serves the budgeting dashboard: public pages, the
authenticated dashboard shell with its lazily loaded views, and the JSON API
used by the single-page client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load environment from these files (default .env)")

	root.AddCommand(
		serveCmd(),
		routesCmd(),
		migrateCmd(),
		keygenCmd(),
	)
	return root
}
