package series

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeries reports malformed year/value input
	ErrInvalidSeries = errors.New("invalid time series")

	// ErrInsufficientData reports fewer points than an operation requires
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrNonPositiveValue reports a zero or negative value where a log or ratio is required
	ErrNonPositiveValue = errors.New("non-positive value")
)

// NonPositiveValueError identifies the offending point of a series that cannot be log-transformed
type NonPositiveValueError struct {
	Series string
	Year   int
	Value  float64
}

// Error implements the error interface
func (e *NonPositiveValueError) Error() string {
	name := e.Series
	if name == "" {
		name = "series"
	}
	return fmt.Sprintf("%s has non-positive value %.6g at year %d", name, e.Value, e.Year)
}

// Unwrap lets errors.Is match ErrNonPositiveValue
func (e *NonPositiveValueError) Unwrap() error {
	return ErrNonPositiveValue
}

// InsufficientDataError records how many points were available against how many were needed
type InsufficientDataError struct {
	Operation string
	Have      int
	Need      int
}

// Error implements the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s needs at least %d points, have %d", e.Operation, e.Need, e.Have)
}

// Unwrap lets errors.Is match ErrInsufficientData
func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}
