package scoring

// DefaultSummaryTopN is how many leading entries the impact summary averages.
const DefaultSummaryTopN = 3

// ImpactSummary describes the head of the current view and the weight total.
type ImpactSummary struct {
	TopN             int     `json:"top_n"`
	AvgValidity      float64 `json:"avg_validity"`
	AvgRelevance     float64 `json:"avg_relevance"`
	AvgActionability float64 `json:"avg_actionability"`
	TotalWeight      float64 `json:"total_weight"`
	WeightsBalanced  bool    `json:"weights_balanced"`
}

// Summarize averages each dimension over the first topN entries of ranked
// (in the order given) and reports whether weights sum to 1.0.
func Summarize(ranked []RankedStatistic, weights WeightVector, topN int) ImpactSummary {
	if topN <= 0 {
		topN = DefaultSummaryTopN
	}
	n := topN
	if len(ranked) < n {
		n = len(ranked)
	}

	s := ImpactSummary{
		TopN:            n,
		TotalWeight:     weights.Sum(),
		WeightsBalanced: weights.Balanced(),
	}
	if n == 0 {
		return s
	}
	for _, r := range ranked[:n] {
		s.AvgValidity += float64(r.Scores.Validity)
		s.AvgRelevance += float64(r.Scores.Relevance)
		s.AvgActionability += float64(r.Scores.Actionability)
	}
	s.AvgValidity /= float64(n)
	s.AvgRelevance /= float64(n)
	s.AvgActionability /= float64(n)
	return s
}
