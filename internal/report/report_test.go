package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

func init() {
	color.NoColor = true
}

func TestPriorityLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{5, HighPriority},
		{4, HighPriority},
		{3.99, MediumPriority},
		{3, MediumPriority},
		{2.5, LowPriority},
		{1, LowPriority},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityLabel(tt.score), "score %v", tt.score)
		assert.Equal(t, tt.want, ColorLabel(tt.score))
	}
}

func TestRenderTable(t *testing.T) {
	ranked := scoring.Rank(scoring.DefaultCatalog(), scoring.DefaultWeights(), true)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, ranked, TableOptions{Detail: true, Limit: 3}))
	out := buf.String()

	assert.Contains(t, out, ranked[0].Name)
	assert.Contains(t, out, ranked[2].Name)
	assert.NotContains(t, out, ranked[3].Name)
	assert.Contains(t, strings.ToUpper(out), "ACTIONABILITY")
}

func TestRenderTableTruncatesNames(t *testing.T) {
	ranked := []scoring.RankedStatistic{{
		Statistic:     scoring.Statistic{Name: "A very long statistic name that keeps going", Scores: scoring.DefaultScores()},
		Rank:          1,
		WeightedScore: 3,
	}}
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, ranked, TableOptions{NameWidth: 12}))
	assert.Contains(t, buf.String(), "A very lo...")
	assert.Contains(t, buf.String(), "3.00")
}

func TestRenderSummary(t *testing.T) {
	ranked := scoring.Rank(scoring.DefaultCatalog(), scoring.DefaultWeights(), true)
	sum := scoring.Summarize(ranked, scoring.DefaultWeights(), 3)

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, sum, scoring.DefaultWeights(), scoring.NamedStrategy(scoring.BalancedKey)))
	out := buf.String()
	assert.Contains(t, out, "Strategy: balanced")
	assert.Contains(t, out, "validity 33%")
	assert.Contains(t, out, "total 100%, balanced")
	assert.Contains(t, out, "Top 3 averages")
}

func TestRenderSummaryUnbalanced(t *testing.T) {
	w := scoring.WeightVector{Validity: 0.5, Relevance: 0.3, Actionability: 0.1}
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, scoring.Summarize(nil, w, 3), w, scoring.NoStrategy()))
	assert.Contains(t, buf.String(), "Strategy: none")
	assert.Contains(t, buf.String(), "unbalanced")
}

func TestRenderStrategies(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderStrategies(&buf, scoring.BuiltinStrategies(), scoring.NamedStrategy(scoring.ImpactFirstKey)))
	out := buf.String()
	assert.Contains(t, out, "impact-first")
	assert.Contains(t, out, "Maintenance-First Strategy")
	assert.Contains(t, out, "0.34")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}
