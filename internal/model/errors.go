package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel errors. An empty result is a normal payload, not an error.
var (
	ErrDataUnavailable     = eris.New("data unavailable")
	ErrInvalidZone         = eris.New("zone is missing or invalid")
	ErrForecastUnavailable = eris.New("forecast unavailable")
	ErrInvalidArgument     = eris.New("invalid argument")
)

// DataUnavailableError records which backing dataset could not be read.
type DataUnavailableError struct {
	Source string
	Err    error
}

// NewDataUnavailable wraps err as a failure of the named dataset.
func NewDataUnavailable(source string, err error) *DataUnavailableError {
	return &DataUnavailableError{Source: source, Err: err}
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable: %s", e.Source)
	}
	return fmt.Sprintf("data unavailable: %s: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDataUnavailable) match any DataUnavailableError.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// IsDataUnavailable reports whether err is a dataset access failure.
func IsDataUnavailable(err error) bool {
	var due *DataUnavailableError
	return errors.As(err, &due) || errors.Is(err, ErrDataUnavailable)
}
