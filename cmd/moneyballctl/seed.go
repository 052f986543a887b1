package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Moneyball/internal/backend"
	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in catalog and strategies into an empty database",
	Long: `Insert the built-in statistics and strategy presets.

Statistics are only written to an empty table and existing strategies are left
alone, so seeding is safe to repeat. The hosted REST backend has no seeder;
use --push there to upsert the built-in statistics instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		cfg.Database.SeedOnStart = false

		db, err := backend.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if push, _ := cmd.Flags().GetBool("push"); push {
			s := dashboard.NewSession(db.Catalog, nil, dashboard.Options{DefaultStrategy: cfg.Dashboard.DefaultStrategy}, logger)
			n, err := s.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d statistics to %s\n", n, db.Name)
			return nil
		}

		if db.Seeder == nil {
			return fmt.Errorf("backend %q cannot be seeded; try --push", db.Name)
		}
		if err := db.Seeder.Seed(cmd.Context(), scoring.DefaultCatalog(), scoring.BuiltinStrategies()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", db.Name)
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("push", false, "Upsert the built-in statistics through the catalog instead of seeding")
}
