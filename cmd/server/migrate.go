package main

import (
	"fmt"
	"time"

	"dress-to-impress/internal/config"
	"dress-to-impress/internal/db"
	"dress-to-impress/internal/logging"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.Setup(cfg.Env, cfg.LogLevel)
			applied, err := db.MigrateUp(cfg.DatabaseURL, dir)
			if err != nil {
				return fmt.Errorf("database migration failed: %w", err)
			}
			if applied {
				logger.Info().Str("dir", dir).Msg("database migrations applied")
			} else {
				logger.Info().Str("dir", dir).Msg("no pending migrations")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", db.MigrationsDir, "migrations directory")
	return cmd
}

func newMigrateCreateCmd() *cobra.Command {
	var dir, name string
	cmd := &cobra.Command{
		Use:   "migrate-create",
		Short: "Create an empty up/down migration pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && len(args) > 0 {
				name = args[0]
			}
			up, down, err := db.CreateMigration(dir, name, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("created %s and %s\n", up, down)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", db.MigrationsDir, "migrations directory")
	cmd.Flags().StringVar(&name, "name", "", "migration name")
	return cmd
}
