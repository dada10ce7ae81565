package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/tsukuyomi/internal/config"
	"github.com/Togather-Foundation/tsukuyomi/internal/storage/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is not set; posts are kept in memory")

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema used for posts",
		Long: `Apply or roll back the embedded schema migrations against DATABASE_URL.

Examples:
  tsukuyomi migrate up
  tsukuyomi migrate down --steps 1
  tsukuyomi migrate version`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := databaseConfig()
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(cfg.URL, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := databaseConfig()
				if err != nil {
					return err
				}
				if err := postgres.MigrateUp(cfg.URL); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := databaseConfig()
				if err != nil {
					return err
				}
				version, dirty, err := postgres.MigrationVersion(cfg.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

func databaseConfig() (config.DatabaseConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return config.DatabaseConfig{}, errNoDatabase
	}
	return cfg.Database, nil
}
