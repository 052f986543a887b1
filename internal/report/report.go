// Package report renders rankings and impact summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

const (
	HighPriority   = "High"
	MediumPriority = "Medium"
	LowPriority    = "Low"
)

var (
	HighColor   = color.New(color.FgRed, color.Bold)
	MediumColor = color.New(color.FgYellow)
	LowColor    = color.New(color.FgGreen)
)

const defaultNameWidth = 40

// PriorityLabel buckets a weighted score on the 1–5 scale.
func PriorityLabel(score float64) string {
	switch {
	case score >= 4:
		return HighPriority
	case score >= 3:
		return MediumPriority
	default:
		return LowPriority
	}
}

func ColorLabel(score float64) string {
	text := PriorityLabel(score)
	switch text {
	case HighPriority:
		return HighColor.Sprint(text)
	case MediumPriority:
		return MediumColor.Sprint(text)
	default:
		return LowColor.Sprint(text)
	}
}

type TableOptions struct {
	// Detail adds the three raw dimension scores.
	Detail bool
	// Limit caps the number of rows; zero shows all.
	Limit     int
	NameWidth int
}

// RenderTable writes ranked statistics in the order given.
func RenderTable(w io.Writer, ranked []scoring.RankedStatistic, opts TableOptions) error {
	if opts.NameWidth <= 0 {
		opts.NameWidth = defaultNameWidth
	}
	rows := ranked
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}

	table := tablewriter.NewWriter(w)
	headers := []string{"Rank", "Statistic", "Score", "Priority"}
	if opts.Detail {
		headers = append(headers, "Validity", "Relevance", "Actionability")
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Rank),
			truncate(r.Name, opts.NameWidth),
			strconv.FormatFloat(r.WeightedScore, 'f', 2, 64),
			ColorLabel(r.WeightedScore),
		}
		if opts.Detail {
			row = append(row,
				strconv.Itoa(r.Scores.Validity),
				strconv.Itoa(r.Scores.Relevance),
				strconv.Itoa(r.Scores.Actionability),
			)
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// RenderSummary writes the impact panel: weights, selected preset and the
// top-N averages.
func RenderSummary(w io.Writer, s scoring.ImpactSummary, weights scoring.WeightVector, selected scoring.SelectedStrategy) error {
	status := "balanced"
	if !s.WeightsBalanced {
		status = color.New(color.FgRed).Sprint("unbalanced")
	}
	_, err := fmt.Fprintf(w,
		"Strategy: %s\nWeights: validity %.0f%%, relevance %.0f%%, actionability %.0f%% (total %.0f%%, %s)\n"+
			"Top %d averages: validity %.2f, relevance %.2f, actionability %.2f\n",
		selected,
		weights.Validity*100, weights.Relevance*100, weights.Actionability*100,
		s.TotalWeight*100, status,
		s.TopN, s.AvgValidity, s.AvgRelevance, s.AvgActionability,
	)
	return err
}

// RenderStrategies lists presets, marking the selected one.
func RenderStrategies(w io.Writer, strategies []scoring.Strategy, selected scoring.SelectedStrategy) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"", "Key", "Name", "Validity", "Relevance", "Actionability"})

	current, _ := selected.Key()
	var data [][]string
	for _, s := range strategies {
		mark := ""
		if s.Key == current {
			mark = "*"
		}
		data = append(data, []string{
			mark,
			s.Key,
			s.Name,
			strconv.FormatFloat(s.Weights.Validity, 'f', 2, 64),
			strconv.FormatFloat(s.Weights.Relevance, 'f', 2, 64),
			strconv.FormatFloat(s.Weights.Actionability, 'f', 2, 64),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
