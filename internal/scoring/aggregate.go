package scoring

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// FactorResult captures one dimension's contribution to a weighted score.
type FactorResult struct {
	Name     Dimension `json:"name"`
	Score    float64   `json:"score"`
	Weight   float64   `json:"weight"`
	Weighted float64   `json:"weighted"`
}

// RankedStatistic is a statistic paired with its weighted score under the
// current weights. It is always derived, never stored.
type RankedStatistic struct {
	Statistic
	Rank          int     `json:"rank"`
	WeightedScore float64 `json:"weighted_score"`
}

// ComputeWeightedScore returns Σ scores[d] × weights[d].
func ComputeWeightedScore(stat Statistic, weights WeightVector) float64 {
	var total float64
	for _, f := range Explain(stat, weights) {
		total += f.Weighted
	}
	return total
}

// Explain returns the per-dimension breakdown behind ComputeWeightedScore.
func Explain(stat Statistic, weights WeightVector) []FactorResult {
	factors := make([]FactorResult, 0, 3)
	for _, d := range Dimensions() {
		score := float64(stat.Scores.Get(d))
		weight := weights.Get(d)
		factors = append(factors, FactorResult{
			Name:     d,
			Score:    score,
			Weight:   weight,
			Weighted: score * weight,
		})
	}
	return factors
}

// Rank scores every statistic. Unsorted output keeps input order; sorted
// output is descending by weighted score with ties in input order.
func Rank(stats []Statistic, weights WeightVector, sorted bool) []RankedStatistic {
	ranked := make([]RankedStatistic, len(stats))
	for i, s := range stats {
		ranked[i] = RankedStatistic{
			Statistic:     s,
			WeightedScore: ComputeWeightedScore(s, weights),
		}
	}
	if sorted {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].WeightedScore > ranked[j].WeightedScore
		})
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// UpdateScore returns a copy of stats with one dimension of one statistic
// replaced. The input slice is never modified; on error it is returned as is.
func UpdateScore(stats []Statistic, id uuid.UUID, d Dimension, score int) ([]Statistic, error) {
	idx := -1
	for i := range stats {
		if stats[i].ID == id {
			idx = i
			break
		}
	}

	var scores DimensionScores
	if idx >= 0 {
		scores = stats[idx].Scores
	}
	updated, err := scores.Set(d, score)
	if err != nil {
		return stats, err
	}
	if idx < 0 {
		return stats, fmt.Errorf("%w: %s", ErrStatisticNotFound, id)
	}

	out := make([]Statistic, len(stats))
	copy(out, stats)
	out[idx].Scores = updated
	return out, nil
}
