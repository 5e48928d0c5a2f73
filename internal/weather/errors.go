package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrPlaceNotFound is returned by geocoders and conditions providers when a
	// query matched no known place.
	ErrPlaceNotFound = errors.New("place not found")

	ErrNoPlaces    = errors.New("at least one place is required")
	ErrInvalidDays = errors.New("days must be between 1 and 7")
)

// ForecastError is a failure of the batched forecast call. It is fatal to the
// whole pipeline run.
type ForecastError struct {
	Provider   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ForecastError) Error() string {
	msg := fmt.Sprintf("%s forecast: %s", e.Provider, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ForecastError) Unwrap() error { return e.Err }

// SeriesError reports a forecast response that cannot be turned into a series.
type SeriesError struct {
	Position int
	Variable Variable
	Reason   string
}

func (e *SeriesError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("forecast position %d: %s: %s", e.Position, e.Variable, e.Reason)
	}
	return fmt.Sprintf("forecast position %d: %s", e.Position, e.Reason)
}
