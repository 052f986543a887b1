package scoring

import (
	"encoding/json"
	"strings"
)

const (
	ImpactFirstKey      = "impact-first"
	BalancedKey         = "balanced"
	MaintenanceFirstKey = "maintenance-first"

	// CustomStrategyName is the stored name for manually tuned weights.
	CustomStrategyName = "Custom Strategy"
)

// Strategy is a named weight preset.
type Strategy struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Weights     WeightVector `json:"weights"`
}

// BuiltinStrategies returns the presets available without a database.
func BuiltinStrategies() []Strategy {
	return []Strategy{
		{
			Key:         ImpactFirstKey,
			Name:        "Impact-First Strategy",
			Description: "Prioritizes services with highest overall scores and success rates",
			Weights:     WeightVector{Validity: 0.4, Relevance: 0.4, Actionability: 0.2},
		},
		{
			Key:         BalancedKey,
			Name:        "Balanced Strategy",
			Description: "Equal weighting across all three scoring dimensions",
			Weights:     DefaultWeights(),
		},
		{
			Key:         MaintenanceFirstKey,
			Name:        "Maintenance-First Strategy",
			Description: "Focuses on actionable, reliable services with quick response times",
			Weights:     WeightVector{Validity: 0.2, Relevance: 0.3, Actionability: 0.5},
		},
	}
}

// FindStrategy looks a strategy up by key.
func FindStrategy(strategies []Strategy, key string) (Strategy, bool) {
	for _, s := range strategies {
		if s.Key == key {
			return s, true
		}
	}
	return Strategy{}, false
}

// StrategyKey derives a preset key from a display name:
// "Maintenance-First Strategy" becomes "maintenance-first".
func StrategyKey(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(b.String(), "-")
	return strings.TrimSuffix(key, "-strategy")
}

// SelectedStrategy records which preset, if any, produced the current weights.
// The zero value is "none", which is distinct from a preset with an empty name.
type SelectedStrategy struct {
	key string
	set bool
}

func NoStrategy() SelectedStrategy { return SelectedStrategy{} }

func NamedStrategy(key string) SelectedStrategy {
	return SelectedStrategy{key: key, set: true}
}

// Key returns the preset key and whether one is selected.
func (s SelectedStrategy) Key() (string, bool) { return s.key, s.set }

func (s SelectedStrategy) IsNone() bool { return !s.set }

func (s SelectedStrategy) String() string {
	if !s.set {
		return "none"
	}
	return s.key
}

func (s SelectedStrategy) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.key)
}

func (s *SelectedStrategy) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NoStrategy()
		return nil
	}
	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		return err
	}
	*s = NamedStrategy(key)
	return nil
}
