package scoring

import (
	"github.com/google/uuid"
)

const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// DimensionScores holds a statistic's 1–5 rating on each dimension.
type DimensionScores struct {
	Validity      int `json:"validity"`
	Relevance     int `json:"relevance"`
	Actionability int `json:"actionability"`
}

// DefaultScores is what an unscored statistic starts with.
func DefaultScores() DimensionScores {
	return DimensionScores{Validity: DefaultScore, Relevance: DefaultScore, Actionability: DefaultScore}
}

func (s DimensionScores) Get(d Dimension) int {
	switch d {
	case Validity:
		return s.Validity
	case Relevance:
		return s.Relevance
	case Actionability:
		return s.Actionability
	}
	return 0
}

// Set returns a copy with d replaced by score.
func (s DimensionScores) Set(d Dimension, score int) (DimensionScores, error) {
	if !d.Valid() {
		return s, invalid("dimension", "unknown dimension %q", d)
	}
	if err := ValidateScore(score); err != nil {
		return s, err
	}
	switch d {
	case Validity:
		s.Validity = score
	case Relevance:
		s.Relevance = score
	case Actionability:
		s.Actionability = score
	}
	return s, nil
}

// WithDefaults fills unscored (zero) dimensions with DefaultScore.
func (s DimensionScores) WithDefaults() DimensionScores {
	if s.Validity == 0 {
		s.Validity = DefaultScore
	}
	if s.Relevance == 0 {
		s.Relevance = DefaultScore
	}
	if s.Actionability == 0 {
		s.Actionability = DefaultScore
	}
	return s
}

func (s DimensionScores) Validate() error {
	for _, d := range Dimensions() {
		if err := ValidateScore(s.Get(d)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateScore rejects anything outside [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return invalid("score", "%d outside [%d, %d]", score, MinScore, MaxScore)
	}
	return nil
}

// Statistic is a service-record statistic being prioritized.
type Statistic struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Rationale   string          `json:"rationale,omitempty"`
	Assumptions string          `json:"assumptions,omitempty"`
	Caveats     string          `json:"caveats,omitempty"`
	Scores      DimensionScores `json:"scores"`
}
