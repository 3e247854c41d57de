package models

import "encoding/json"

// Prediction is the forecast for the next round.
type Prediction string

const (
	PredictionHigh         Prediction = "High"
	PredictionLow          Prediction = "Low"
	PredictionInsufficient Prediction = "Insufficient"
)

// PredictionFor converts an outcome into the matching prediction.
func PredictionFor(o Outcome) Prediction {
	if o == OutcomeHigh {
		return PredictionHigh
	}
	return PredictionLow
}

// PatternInsufficient labels results produced without enough history.
const PatternInsufficient = "insufficient"

// PredictionResult is what a strategy returns for a history snapshot.
// Confidence is nil when the prediction is Insufficient.
type PredictionResult struct {
	Prediction   Prediction
	Confidence   *float64
	Rationale    string
	PatternLabel string
	Strategy     string
}

// Insufficient reports whether the result carries no forecast.
func (r PredictionResult) Insufficient() bool {
	return r.Prediction == PredictionInsufficient
}

// CycleResponse is the payload returned for one fetch/upsert/predict cycle.
type CycleResponse struct {
	PreviousRoundID *int64     `json:"previousRoundId"`
	Dice            []int      `json:"dice"`
	Total           *int       `json:"total"`
	Outcome         *Outcome   `json:"outcome"`
	NextRoundID     *int64     `json:"nextRoundId"`
	Prediction      Prediction `json:"prediction"`
	Confidence      Confidence `json:"confidence"`
	Rationale       string     `json:"rationale"`
	PatternLabel    string     `json:"patternLabel"`
	Strategy        string     `json:"strategy"`
	HistorySize     int        `json:"historySize"`
}

// NewCycleResponse shapes the response for the round that was just ingested.
func NewCycleResponse(latest *RoundRecord, result PredictionResult, historySize int) CycleResponse {
	resp := CycleResponse{
		Dice:         []int{},
		Prediction:   result.Prediction,
		Confidence:   Confidence{Value: result.Confidence},
		Rationale:    result.Rationale,
		PatternLabel: result.PatternLabel,
		Strategy:     result.Strategy,
		HistorySize:  historySize,
	}
	if latest != nil {
		prev := latest.RoundID
		next := latest.RoundID + 1
		total := latest.Total
		outcome := latest.Outcome
		resp.PreviousRoundID = &prev
		resp.NextRoundID = &next
		resp.Dice = []int{latest.Dice[0], latest.Dice[1], latest.Dice[2]}
		resp.Total = &total
		resp.Outcome = &outcome
	}
	return resp
}

// ConfidenceUnavailable is the JSON form of a missing confidence.
const ConfidenceUnavailable = "insufficient"

// Confidence encodes as a number, or as ConfidenceUnavailable when absent.
type Confidence struct {
	Value *float64
}

// MarshalJSON implements json.Marshaler.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.Value == nil {
		return json.Marshal(ConfidenceUnavailable)
	}
	return json.Marshal(*c.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		c.Value = &v
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.Value = nil
	return nil
}

// PredictionUnavailable is the neutral placeholder used in failure payloads.
const PredictionUnavailable = "unavailable"

// FailureResponse is returned when a cycle fails on upstream or validation errors.
type FailureResponse struct {
	Error      string  `json:"error"`
	Details    string  `json:"details"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// NewFailureResponse builds a failure payload with a neutral prediction.
func NewFailureResponse(summary string, err error) FailureResponse {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return FailureResponse{
		Error:      summary,
		Details:    details,
		Prediction: PredictionUnavailable,
		Confidence: 0,
		Rationale:  "No prediction could be made for this request.",
	}
}
