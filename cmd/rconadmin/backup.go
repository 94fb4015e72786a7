package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reedfamily/rconadmin/internal/backup"
	"github.com/reedfamily/rconadmin/internal/config"
	"github.com/reedfamily/rconadmin/internal/db"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and restore database snapshots",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd.Context(), func(svc *backup.Service) error {
			b, err := svc.Create(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %d bytes)\n", b.ID, b.Filename, b.SizeBytes)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd.Context(), func(svc *backup.Service) error {
			backups, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSIZE\tBY")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.SizeBytes, b.CreatedBy)
			}
			return w.Flush()
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id> <dest>",
	Short: "Write a snapshot to a new database file",
	Long:  `Decompresses a snapshot to dest. Stop the server and point database at dest to use it.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd.Context(), func(svc *backup.Service) error {
			if err := svc.Restore(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

func withBackups(ctx context.Context, fn func(*backup.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	database, err := openMigrated(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(backup.NewService(database, filepath.Join(cfg.DataDir, "backups"), cfg.Backup.Keep))
}

func openMigrated(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, nil
}
