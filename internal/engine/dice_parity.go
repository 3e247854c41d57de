package engine

import (
	"fmt"

	"github.com/roundcast/roundcast/internal/models"
)

// PatternDiceParity labels dice-parity predictions.
const PatternDiceParity = "dice-parity"

// DiceParity ignores outcome history and votes on the newest round's dice:
// each face d contributes t = d + total, reduced by 4 when t is 4 or 5 and by
// 6 when t >= 6; an even t votes High, odd votes Low.
type DiceParity struct {
	th     Thresholds
	source Source
}

// NewDiceParity constructs the dice-parity strategy.
func NewDiceParity(th Thresholds, opts ...Option) *DiceParity {
	o := buildOptions(opts)
	return &DiceParity{th: th, source: o.source}
}

// Name implements Strategy.
func (d *DiceParity) Name() string { return StrategyDiceParity }

// Predict implements Strategy.
func (d *DiceParity) Predict(records []models.RoundRecord) models.PredictionResult {
	if len(records) == 0 {
		return insufficient(d.Name(), "No rounds recorded yet; waiting for data.")
	}
	latest := records[len(records)-1]
	votes := ParityVotes(latest.Dice)
	next := majority(votes)

	high := 0
	for _, v := range votes {
		if v == models.OutcomeHigh {
			high++
		}
	}
	return models.PredictionResult{
		Prediction: models.PredictionFor(next),
		Confidence: confidence(d.th, d.source, d.th.DiceParityConfidence),
		Rationale: fmt.Sprintf("Dice %d-%d-%d (total %d) vote %d High / %d Low by parity.",
			latest.Dice[0], latest.Dice[1], latest.Dice[2], latest.Total, high, len(votes)-high),
		PatternLabel: PatternDiceParity,
		Strategy:     d.Name(),
	}
}

// ParityVotes returns the per-die classification in dice order.
func ParityVotes(dice models.Dice) []models.Outcome {
	total := dice.Sum()
	votes := make([]models.Outcome, 0, len(dice))
	for _, face := range dice {
		votes = append(votes, parityOutcome(normalizeParity(face+total)))
	}
	return votes
}

func normalizeParity(t int) int {
	switch {
	case t >= 4 && t <= 5:
		return t - 4
	case t >= 6:
		return t - 6
	default:
		return t
	}
}

func parityOutcome(t int) models.Outcome {
	if t%2 == 0 {
		return models.OutcomeHigh
	}
	return models.OutcomeLow
}

// majority picks the most frequent vote; on a tie the class seen first wins.
func majority(votes []models.Outcome) models.Outcome {
	counts := make(map[models.Outcome]int, 2)
	order := make([]models.Outcome, 0, 2)
	for _, v := range votes {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best := models.OutcomeLow
	bestCount := -1
	for _, o := range order {
		if counts[o] > bestCount {
			best, bestCount = o, counts[o]
		}
	}
	return best
}
