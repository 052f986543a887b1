package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Moneyball/internal/report"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List weight presets; * marks the active one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, closeFn, err := openSession(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer closeFn()

		snap := s.View()
		return report.RenderStrategies(cmd.OutOrStdout(), snap.Strategies, snap.Selected)
	},
}
