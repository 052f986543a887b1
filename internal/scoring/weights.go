package scoring

import (
	"math"
)

const (
	// WeightTolerance is how far a settled vector may drift from summing to 1.0.
	WeightTolerance = 0.01

	// ZeroTotalEpsilon is the sibling total at or below which redistribution
	// switches from a proportional to an equal split.
	ZeroTotalEpsilon = 1e-9
)

// WeightVector holds the fractional contribution of each dimension.
// A settled vector sums to 1.0 (±WeightTolerance).
type WeightVector struct {
	Validity      float64 `json:"validity" yaml:"validity"`
	Relevance     float64 `json:"relevance" yaml:"relevance"`
	Actionability float64 `json:"actionability" yaml:"actionability"`
}

// DefaultWeights returns the balanced distribution.
func DefaultWeights() WeightVector {
	return WeightVector{
		Validity:      0.33,
		Relevance:     0.33,
		Actionability: 0.34,
	}
}

// Get returns the weight of d, or 0 for an unknown dimension.
func (w WeightVector) Get(d Dimension) float64 {
	switch d {
	case Validity:
		return w.Validity
	case Relevance:
		return w.Relevance
	case Actionability:
		return w.Actionability
	}
	return 0
}

func (w WeightVector) with(d Dimension, v float64) WeightVector {
	switch d {
	case Validity:
		w.Validity = v
	case Relevance:
		w.Relevance = v
	case Actionability:
		w.Actionability = v
	}
	return w
}

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	return w.Validity + w.Relevance + w.Actionability
}

// Balanced reports whether the weights sum to 1.0 within WeightTolerance.
func (w WeightVector) Balanced() bool {
	return math.Abs(w.Sum()-1.0) <= WeightTolerance
}

// Validate checks that every weight is within [0, 1] and the total is 1.0.
func (w WeightVector) Validate() error {
	for _, d := range Dimensions() {
		v := w.Get(d)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return invalid("weight", "%s weight %.4f outside [0, 1]", d, v)
		}
	}
	if !w.Balanced() {
		return invalid("weight", "weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	return nil
}

// LockSet marks dimensions whose weight is held fixed during redistribution.
type LockSet struct {
	Validity      bool `json:"validity"`
	Relevance     bool `json:"relevance"`
	Actionability bool `json:"actionability"`
}

// Locked reports whether d is locked.
func (l LockSet) Locked(d Dimension) bool {
	switch d {
	case Validity:
		return l.Validity
	case Relevance:
		return l.Relevance
	case Actionability:
		return l.Actionability
	}
	return false
}

// Toggle flips the lock on d and returns the new state.
func (l *LockSet) Toggle(d Dimension) bool {
	switch d {
	case Validity:
		l.Validity = !l.Validity
	case Relevance:
		l.Relevance = !l.Relevance
	case Actionability:
		l.Actionability = !l.Actionability
	}
	return l.Locked(d)
}

// AllLocked reports whether no dimension can move.
func (l LockSet) AllLocked() bool {
	return l.Validity && l.Relevance && l.Actionability
}

// Redistribute sets target to value and rescales the unlocked siblings so the
// vector sums to 1.0 again. Locked siblings keep their exact weight. On any
// rejection the input vector is returned together with a ValidationError.
func Redistribute(w WeightVector, locks LockSet, target Dimension, value float64) (WeightVector, error) {
	if !target.Valid() {
		return w, invalid("dimension", "unknown dimension %q", target)
	}
	if locks.Locked(target) {
		return w, invalid("weight", "%s is locked", target)
	}
	if math.IsNaN(value) || value < 0 || value > 1 {
		return w, invalid("weight", "%.4f outside [0, 1]", value)
	}

	var lockedTotal, unlockedTotal float64
	var unlocked []Dimension
	for _, d := range Dimensions() {
		if d == target {
			continue
		}
		if locks.Locked(d) {
			lockedTotal += w.Get(d)
			continue
		}
		unlocked = append(unlocked, d)
		unlockedTotal += w.Get(d)
	}
	if len(unlocked) == 0 {
		return w, invalid("weight", "every other dimension is locked")
	}

	available := (1 - value) - lockedTotal
	// Float subtraction can leave a tiny negative residue when the request
	// exactly fills the space left by locked weights.
	if available < -ZeroTotalEpsilon {
		return w, invalid("weight", "%s=%.4f leaves %.4f for unlocked weights", target, value, available)
	}
	available = math.Max(available, 0)

	out := w.with(target, value)
	if unlockedTotal <= ZeroTotalEpsilon {
		share := available / float64(len(unlocked))
		for _, d := range unlocked {
			out = out.with(d, share)
		}
		return out, nil
	}
	for _, d := range unlocked {
		out = out.with(d, w.Get(d)/unlockedTotal*available)
	}
	return out, nil
}
