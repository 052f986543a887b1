package scoring

// WeightAllocator owns the live weight vector, its lock flags and the
// selected-preset marker. It is not safe for concurrent use; callers
// serialize access.
type WeightAllocator struct {
	weights  WeightVector
	locks    LockSet
	selected SelectedStrategy
}

// NewWeightAllocator starts from the balanced preset with nothing locked.
func NewWeightAllocator() *WeightAllocator {
	return &WeightAllocator{
		weights:  DefaultWeights(),
		selected: NamedStrategy(BalancedKey),
	}
}

func (a *WeightAllocator) Weights() WeightVector { return a.weights }

func (a *WeightAllocator) Locks() LockSet { return a.locks }

func (a *WeightAllocator) Selected() SelectedStrategy { return a.selected }

// ApplyStrategy replaces the weights wholesale. Locks are left as they are.
func (a *WeightAllocator) ApplyStrategy(s Strategy) error {
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	a.weights = s.Weights
	a.selected = NamedStrategy(s.Key)
	return nil
}

// SetDimension moves one weight and redistributes the rest. A rejected
// request leaves every weight and the marker unchanged.
func (a *WeightAllocator) SetDimension(d Dimension, value float64) (WeightVector, error) {
	next, err := Redistribute(a.weights, a.locks, d, value)
	if err != nil {
		return a.weights, err
	}
	a.weights = next
	a.selected = NoStrategy()
	return a.weights, nil
}

// ToggleLock flips the lock on d and returns the new lock state.
func (a *WeightAllocator) ToggleLock(d Dimension) (bool, error) {
	if !d.Valid() {
		return false, invalid("dimension", "unknown dimension %q", d)
	}
	return a.locks.Toggle(d), nil
}
