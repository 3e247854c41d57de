package engine

import (
	"fmt"
	"strings"

	"github.com/roundcast/roundcast/internal/models"
)

// Pattern labels produced by the cascade.
const (
	PatternRatioSkew   = "ratio-skew"
	PatternAlternating = "alternating"
	PatternTwoOneTwo   = "2-1-2"
	PatternNone        = "none"
)

// Cascade evaluates outcome-history heuristics in fixed priority order on the
// most recent window: streak-break, ratio-skew, alternating, 2-1-2, then a
// minority fallback. The first heuristic that fires decides.
type Cascade struct {
	th     Thresholds
	source Source
}

// NewCascade constructs the heuristic cascade.
func NewCascade(th Thresholds, opts ...Option) *Cascade {
	o := buildOptions(opts)
	return &Cascade{th: th, source: o.source}
}

// Name implements Strategy.
func (c *Cascade) Name() string { return StrategyCascade }

type heuristic func(window []models.Outcome) (models.PredictionResult, bool)

// Predict implements Strategy.
func (c *Cascade) Predict(records []models.RoundRecord) models.PredictionResult {
	if len(records) < c.th.MinHistory {
		return insufficient(c.Name(), fmt.Sprintf(
			"Need at least %d rounds of history to analyse patterns, have %d.", c.th.MinHistory, len(records)))
	}

	window := outcomes(records, c.th.Window)
	for _, h := range []heuristic{c.streakBreak, c.ratioSkew, c.alternating, c.twoOneTwo, c.minority} {
		if res, ok := h(window); ok {
			res.Strategy = c.Name()
			return res
		}
	}
	// minority always fires; kept for completeness.
	return insufficient(c.Name(), "No heuristic matched.")
}

func (c *Cascade) streakBreak(window []models.Outcome) (models.PredictionResult, bool) {
	run := trailingRun(window)
	if run < c.th.StreakMin {
		return models.PredictionResult{}, false
	}
	last := window[len(window)-1]
	score := c.th.StreakBase + c.th.StreakStep*float64(run-c.th.StreakMin)
	if score > c.th.StreakCap {
		score = c.th.StreakCap
	}
	next := last.Opposite()
	return models.PredictionResult{
		Prediction:   models.PredictionFor(next),
		Confidence:   confidence(c.th, c.source, score),
		Rationale:    fmt.Sprintf("%s has appeared %d times in a row; expecting the streak to break toward %s.", last, run, next),
		PatternLabel: fmt.Sprintf("streak-%d-%s", run, strings.ToLower(string(last))),
	}, true
}

func (c *Cascade) ratioSkew(window []models.Outcome) (models.PredictionResult, bool) {
	high, low := count(window)
	diff := high - low
	if diff < 0 {
		diff = -diff
	}
	if diff <= c.th.SkewMargin {
		return models.PredictionResult{}, false
	}
	majority := models.OutcomeHigh
	if low > high {
		majority = models.OutcomeLow
	}
	next := majority.Opposite()
	return models.PredictionResult{
		Prediction:   models.PredictionFor(next),
		Confidence:   confidence(c.th, c.source, c.th.SkewConfidence),
		Rationale:    fmt.Sprintf("Last %d rounds lean %s (%d High / %d Low); expecting a correction toward %s.", len(window), majority, high, low, next),
		PatternLabel: PatternRatioSkew,
	}, true
}

func (c *Cascade) alternating(window []models.Outcome) (models.PredictionResult, bool) {
	n := c.th.AlternatingLength
	if len(window) < n {
		return models.PredictionResult{}, false
	}
	tail := window[len(window)-n:]
	for i := 1; i < len(tail); i++ {
		if tail[i] == tail[i-1] {
			return models.PredictionResult{}, false
		}
	}
	next := tail[len(tail)-1].Opposite()
	return models.PredictionResult{
		Prediction:   models.PredictionFor(next),
		Confidence:   confidence(c.th, c.source, c.th.AlternatingConfidence),
		Rationale:    fmt.Sprintf("Last %d rounds alternate (%s); expecting the alternation to continue with %s.", n, joinOutcomes(tail), next),
		PatternLabel: PatternAlternating,
	}, true
}

func (c *Cascade) twoOneTwo(window []models.Outcome) (models.PredictionResult, bool) {
	if len(window) < 5 {
		return models.PredictionResult{}, false
	}
	tail := window[len(window)-5:]
	x := tail[4]
	if tail[0] != x || tail[1] != x || tail[3] != x || tail[2] == x {
		return models.PredictionResult{}, false
	}
	next := tail[2]
	return models.PredictionResult{
		Prediction:   models.PredictionFor(next),
		Confidence:   confidence(c.th, c.source, c.th.TwoOneTwoConfidence),
		Rationale:    fmt.Sprintf("Last 5 rounds follow a 2-1-2 structure (%s); expecting %s next.", joinOutcomes(tail), next),
		PatternLabel: PatternTwoOneTwo,
	}, true
}

func (c *Cascade) minority(window []models.Outcome) (models.PredictionResult, bool) {
	high, low := count(window)
	next := models.OutcomeLow
	if high < low {
		next = models.OutcomeHigh
	}
	return models.PredictionResult{
		Prediction:   models.PredictionFor(next),
		Confidence:   confidence(c.th, c.source, c.th.FallbackConfidence),
		Rationale:    fmt.Sprintf("No clear pattern in the last %d rounds (%d High / %d Low); leaning toward the less frequent %s.", len(window), high, low, next),
		PatternLabel: PatternNone,
	}, true
}

// outcomes extracts the outcomes of the newest size records, oldest first.
func outcomes(records []models.RoundRecord, size int) []models.Outcome {
	if size > 0 && len(records) > size {
		records = records[len(records)-size:]
	}
	out := make([]models.Outcome, len(records))
	for i, rec := range records {
		out[i] = rec.Outcome
	}
	return out
}

func trailingRun(window []models.Outcome) int {
	if len(window) == 0 {
		return 0
	}
	last := window[len(window)-1]
	run := 0
	for i := len(window) - 1; i >= 0 && window[i] == last; i-- {
		run++
	}
	return run
}

func count(window []models.Outcome) (high, low int) {
	for _, o := range window {
		if o == models.OutcomeHigh {
			high++
		} else {
			low++
		}
	}
	return high, low
}

func joinOutcomes(window []models.Outcome) string {
	parts := make([]string, len(window))
	for i, o := range window {
		parts[i] = string(o)
	}
	return strings.Join(parts, ",")
}
