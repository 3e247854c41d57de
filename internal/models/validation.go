package models

import (
	"errors"
	"fmt"
)

// ValidationReason enumerates why round data was rejected.
type ValidationReason string

const (
	ReasonMissing      ValidationReason = "missing"
	ReasonOutOfRange   ValidationReason = "out_of_range"
	ReasonNonInteger   ValidationReason = "non_integer"
	ReasonInconsistent ValidationReason = "inconsistent"
)

var (
	// ErrMissingDice matches validation errors for absent dice or round id.
	ErrMissingDice = errors.New("missing dice value")
	// ErrDiceOutOfRange matches validation errors for faces outside [1,6].
	ErrDiceOutOfRange = errors.New("dice value out of range")
	// ErrNonInteger matches validation errors for fractional numeric fields.
	ErrNonInteger = errors.New("non-integer value")
	// ErrInconsistent matches records whose derived fields disagree with the dice.
	ErrInconsistent = errors.New("inconsistent derived field")
)

// ValidationError describes malformed round data.
type ValidationError struct {
	Field  string
	Reason ValidationReason
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid round: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid round: %s %s (%v)", e.Field, e.Reason, e.Value)
}

// Is lets callers match on the reason sentinels.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrMissingDice:
		return e.Reason == ReasonMissing
	case ErrDiceOutOfRange:
		return e.Reason == ReasonOutOfRange
	case ErrNonInteger:
		return e.Reason == ReasonNonInteger
	case ErrInconsistent:
		return e.Reason == ReasonInconsistent
	}
	return false
}
