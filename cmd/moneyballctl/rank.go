package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/report"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank statistics under a strategy or custom weights",
	Long: `Rank the catalog by weighted priority.

Weights are applied in order: --strategy first, then --lock, then each --weight.
Each --weight redistributes the unlocked dimensions exactly as the dashboard does.

Examples:
  # Impact-first ranking, highest priority first
  moneyballctl rank --strategy impact-first --sorted

  # Hold relevance fixed and push actionability to 60%
  moneyballctl rank --lock relevance --weight actionability=0.6 --sorted --detail`,
	RunE: runRank,
}

func init() {
	addRankFlags(rankCmd)
}

func addRankFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("sorted", false, "Order by weighted score instead of catalog order")
	cmd.Flags().String("strategy", "", "Preset key to apply before any --weight")
	cmd.Flags().StringSlice("weight", nil, "dimension=value, may repeat")
	cmd.Flags().StringSlice("lock", nil, "Dimension to lock, may repeat; locking twice is a no-op")
	cmd.Flags().Bool("detail", false, "Show the raw dimension scores")
	cmd.Flags().IntP("limit", "l", 0, "Number of rows to show (0 = all)")
	cmd.Flags().Bool("save", false, "Store the resulting weights as the custom strategy")
}

type weightArg struct {
	dim   scoring.Dimension
	value float64
}

func parseWeightArgs(raw []string) ([]weightArg, error) {
	out := make([]weightArg, 0, len(raw))
	for _, r := range raw {
		name, val, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("weight %q: expected dimension=value", r)
		}
		d, err := scoring.ParseDimension(name)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", r, err)
		}
		out = append(out, weightArg{dim: d, value: v})
	}
	return out, nil
}

// applyRankFlags drives the session the same way the dashboard controls do.
func applyRankFlags(cmd *cobra.Command, s *dashboard.Session) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	if key, _ := flags.GetString("strategy"); key != "" {
		if _, err := s.ApplyStrategy(ctx, key); err != nil {
			return err
		}
	}
	locks, _ := flags.GetStringSlice("lock")
	for _, l := range locks {
		d, err := scoring.ParseDimension(l)
		if err != nil {
			return err
		}
		if s.View().Locks.Locked(d) {
			continue
		}
		if _, err := s.ToggleLock(d); err != nil {
			return err
		}
	}
	raw, _ := flags.GetStringSlice("weight")
	weights, err := parseWeightArgs(raw)
	if err != nil {
		return err
	}
	for _, w := range weights {
		if _, err := s.SetWeight(w.dim, w.value); err != nil {
			return err
		}
	}
	if sorted, _ := flags.GetBool("sorted"); sorted {
		s.SortByPriority()
	}
	return nil
}

func runRank(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setColor()
	logger := newLogger(cfg)

	s, closeFn, err := openSession(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := applyRankFlags(cmd, s); err != nil {
		return err
	}
	if save, _ := cmd.Flags().GetBool("save"); save {
		if _, err := s.SaveWeights(cmd.Context()); err != nil {
			return fmt.Errorf("save weights: %w", err)
		}
	}

	snap := s.View()
	detail, _ := cmd.Flags().GetBool("detail")
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()
	if err := report.RenderTable(out, snap.Statistics, report.TableOptions{Detail: detail, Limit: limit}); err != nil {
		return err
	}
	return report.RenderSummary(out, snap.Summary, snap.Weights, snap.Selected)
}

func setColor() {
	switch strings.ToLower(viper.GetString("color")) {
	case "no", "false", "0":
		color.NoColor = true
	}
}
