package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Long: `Apply the embedded schema migrations to the configured database.

For Postgres, --target selects a version: -1 (default) is the latest and 0 rolls
everything back. SQLite databases are always brought to the latest version.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		target, _ := cmd.Flags().GetInt("target")

		switch cfg.Database.Backend {
		case config.BackendPostgres:
			if err := store.MigratePostgres(cfg.Database.URL, target, logger); err != nil {
				return err
			}
		case config.BackendSQLite:
			lite, err := store.NewSQLiteStore(cfg.Database.SQLitePath, logger)
			if err != nil {
				return err
			}
			_ = lite.Close()
		default:
			return fmt.Errorf("backend %q has no local schema to migrate", cfg.Database.Backend)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Database.Backend)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Int("target", store.LatestVersion, "Schema version to migrate to (postgres only)")
}
