package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Dimension is one of the three axes a statistic is scored along.
type Dimension string

const (
	Validity      Dimension = "validity"
	Relevance     Dimension = "relevance"
	Actionability Dimension = "actionability"
)

// Dimensions returns every dimension in display order.
func Dimensions() []Dimension {
	return []Dimension{Validity, Relevance, Actionability}
}

// ParseDimension accepts a dimension name in any case.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", invalid("dimension", "unknown dimension %q", s)
	}
	return d, nil
}

// Valid reports whether d is one of the three known dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case Validity, Relevance, Actionability:
		return true
	}
	return false
}

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrStatisticNotFound is returned when a score update names an unknown statistic.
var ErrStatisticNotFound = errors.New("statistic not found")

// ValidationError reports a rejected request. The state it targeted is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
