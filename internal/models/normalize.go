package models

import (
	"fmt"
	"math"
)

// RawRound mirrors the upstream payload. Numeric fields are pointers so that
// absent values can be told apart from zero.
type RawRound struct {
	Phien  *float64 `json:"phien"`
	Dice1  *float64 `json:"xuc_xac_1"`
	Dice2  *float64 `json:"xuc_xac_2"`
	Dice3  *float64 `json:"xuc_xac_3"`
	Tong   *float64 `json:"tong"`
	KetQua string   `json:"ket_qua"`
}

// Normalize validates a raw upstream round and derives total and outcome from
// the dice, ignoring whatever total or label upstream reported.
func Normalize(raw RawRound) (RoundRecord, error) {
	roundID, err := integerField("phien", raw.Phien)
	if err != nil {
		return RoundRecord{}, err
	}
	if roundID <= 0 {
		return RoundRecord{}, &ValidationError{Field: "phien", Reason: ReasonOutOfRange, Value: roundID}
	}

	var dice Dice
	for i, v := range []*float64{raw.Dice1, raw.Dice2, raw.Dice3} {
		face, err := integerField(dieField(i), v)
		if err != nil {
			return RoundRecord{}, err
		}
		dice[i] = int(face)
	}

	return NewRoundRecord(roundID, dice)
}

// Discrepancies lists upstream fields that disagree with the normalised record.
func Discrepancies(raw RawRound, rec RoundRecord) []string {
	var out []string
	if raw.Tong != nil && *raw.Tong != float64(rec.Total) {
		out = append(out, fmt.Sprintf("tong=%v, dice sum=%d", *raw.Tong, rec.Total))
	}
	if raw.KetQua != "" {
		if reported, ok := ParseOutcome(raw.KetQua); !ok || reported != rec.Outcome {
			out = append(out, fmt.Sprintf("ket_qua=%q, derived=%s", raw.KetQua, rec.Outcome))
		}
	}
	return out
}

func integerField(field string, v *float64) (int64, error) {
	if v == nil {
		return 0, &ValidationError{Field: field, Reason: ReasonMissing}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v != math.Trunc(*v) {
		return 0, &ValidationError{Field: field, Reason: ReasonNonInteger, Value: *v}
	}
	return int64(*v), nil
}
