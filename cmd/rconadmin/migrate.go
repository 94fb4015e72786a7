package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reedfamily/rconadmin/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ctx := cmd.Context()
		database, err := openMigrated(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		version, err := db.Version(ctx, database)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", cfg.DatabasePath, version)
		return nil
	},
}
