package models

import (
	"fmt"
	"strings"
)

// HighThreshold is the smallest total classified as High.
const HighThreshold = 11

const (
	dieMin = 1
	dieMax = 6
)

// Outcome classifies a round total against HighThreshold.
type Outcome string

const (
	OutcomeHigh Outcome = "High"
	OutcomeLow  Outcome = "Low"
)

// Opposite returns the other outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeHigh {
		return OutcomeLow
	}
	return OutcomeHigh
}

// Valid reports whether o is one of the two known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeHigh || o == OutcomeLow
}

// OutcomeForTotal derives the outcome of a dice total.
func OutcomeForTotal(total int) Outcome {
	if total >= HighThreshold {
		return OutcomeHigh
	}
	return OutcomeLow
}

// ParseOutcome accepts the upstream labels ("Tài"/"Xỉu") and the English names.
func ParseOutcome(label string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high", "tài", "tai":
		return OutcomeHigh, true
	case "low", "xỉu", "xiu":
		return OutcomeLow, true
	default:
		return "", false
	}
}

// Dice holds the three die faces of a round in upstream order.
type Dice [3]int

// Sum adds the three faces.
func (d Dice) Sum() int {
	return d[0] + d[1] + d[2]
}

// RoundRecord is one normalised game round. Total and Outcome are always
// derived from Dice.
type RoundRecord struct {
	RoundID int64   `json:"roundId"`
	Dice    Dice    `json:"dice"`
	Total   int     `json:"total"`
	Outcome Outcome `json:"outcome"`
}

// NewRoundRecord builds a record from dice faces, deriving total and outcome.
func NewRoundRecord(roundID int64, dice Dice) (RoundRecord, error) {
	rec := RoundRecord{
		RoundID: roundID,
		Dice:    dice,
		Total:   dice.Sum(),
		Outcome: OutcomeForTotal(dice.Sum()),
	}
	if err := rec.Validate(); err != nil {
		return RoundRecord{}, err
	}
	return rec, nil
}

// Validate checks die ranges and the total/outcome derivation.
func (r RoundRecord) Validate() error {
	for i, d := range r.Dice {
		if d < dieMin || d > dieMax {
			return &ValidationError{Field: dieField(i), Reason: ReasonOutOfRange, Value: d}
		}
	}
	if r.Total != r.Dice.Sum() {
		return &ValidationError{Field: "total", Reason: ReasonInconsistent, Value: r.Total}
	}
	if r.Outcome != OutcomeForTotal(r.Total) {
		return &ValidationError{Field: "outcome", Reason: ReasonInconsistent, Value: r.Outcome}
	}
	return nil
}

func dieField(i int) string {
	return fmt.Sprintf("xuc_xac_%d", i+1)
}
