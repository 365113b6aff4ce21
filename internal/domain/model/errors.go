package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSignal is wrapped by every ValidationError.
var ErrInvalidSignal = errors.New("invalid signal")

// ValidationError reports which field of a Signal broke an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSignal }
