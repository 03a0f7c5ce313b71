package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/storage"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending schema migrations to the configured sqlite or postgres
backend. The memory backend has no schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			dialect, dsn, err := bcfg.Migration()
			if err != nil {
				return err
			}
			if !status {
				if err := storage.RunMigrations(dialect, dsn); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			version, dirty, err := storage.MigrationVersion(dialect, dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d", bcfg.Type, version)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Only print the current schema version")
	return cmd
}
