package engine

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/roundcast/roundcast/internal/models"
)

const (
	H = models.OutcomeHigh
	L = models.OutcomeLow
)

func history(t *testing.T, outs ...models.Outcome) []models.RoundRecord {
	t.Helper()
	records := make([]models.RoundRecord, 0, len(outs))
	for i, o := range outs {
		dice := models.Dice{1, 2, 3}
		if o == models.OutcomeHigh {
			dice = models.Dice{4, 4, 4}
		}
		rec, err := models.NewRoundRecord(int64(i+1), dice)
		if err != nil {
			t.Fatalf("build round: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

func mustConfidence(t *testing.T, res models.PredictionResult) float64 {
	t.Helper()
	if res.Confidence == nil {
		t.Fatalf("expected numeric confidence, got nil (%+v)", res)
	}
	return *res.Confidence
}

func TestCascadeStreakBreak(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	res := c.Predict(history(t, H, H, H))
	if res.Prediction != models.PredictionLow {
		t.Fatalf("expected Low after three Highs, got %s", res.Prediction)
	}
	if res.PatternLabel != "streak-3-high" {
		t.Fatalf("unexpected label %q", res.PatternLabel)
	}
	conf := mustConfidence(t, res)
	if conf < 60 || conf > 90 {
		t.Fatalf("confidence out of range: %v", conf)
	}
	if res.Strategy != StrategyCascade {
		t.Fatalf("unexpected strategy %q", res.Strategy)
	}
}

func TestCascadeStreakConfidenceCapped(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	five := mustConfidence(t, c.Predict(history(t, L, L, L, L, L)))
	if five != 70 {
		t.Fatalf("expected 70 for a 5-run, got %v", five)
	}
	res := c.Predict(history(t, L, L, L, L, L, L, L, L, L, L, L, L))
	if got := mustConfidence(t, res); got != 90 {
		t.Fatalf("expected capped confidence 90, got %v", got)
	}
	if res.Prediction != models.PredictionHigh || res.PatternLabel != "streak-10-low" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCascadeRatioSkew(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	res := c.Predict(history(t, H, H, L, H, H, L, H, H))
	if res.PatternLabel != PatternRatioSkew {
		t.Fatalf("expected ratio-skew, got %q", res.PatternLabel)
	}
	if res.Prediction != models.PredictionLow {
		t.Fatalf("expected Low against High majority, got %s", res.Prediction)
	}
	if got := mustConfidence(t, res); got != 70 {
		t.Fatalf("expected 70, got %v", got)
	}
}

func TestCascadeAlternating(t *testing.T) {
	th := DefaultThresholds()
	c := NewCascade(th)

	res := c.Predict(history(t, H, L, H, L))
	if res.PatternLabel != PatternAlternating {
		t.Fatalf("expected alternating, got %q", res.PatternLabel)
	}
	if res.Prediction != models.PredictionHigh {
		t.Fatalf("expected High continuation, got %s", res.Prediction)
	}
	if got := mustConfidence(t, res); got <= th.SkewConfidence {
		t.Fatalf("alternating confidence %v should exceed ratio-skew %v", got, th.SkewConfidence)
	}
}

func TestCascadeTwoOneTwo(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	res := c.Predict(history(t, L, H, H, L, H, H))
	if res.PatternLabel != PatternTwoOneTwo {
		t.Fatalf("expected 2-1-2, got %q (%s)", res.PatternLabel, res.Rationale)
	}
	if res.Prediction != models.PredictionLow {
		t.Fatalf("expected Low, got %s", res.Prediction)
	}
	if got := mustConfidence(t, res); got != 80 {
		t.Fatalf("expected 80, got %v", got)
	}
}

func TestCascadeFallbackPrefersLowOnTie(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	res := c.Predict(history(t, H, H, L, L))
	if res.PatternLabel != PatternNone {
		t.Fatalf("expected fallback, got %q", res.PatternLabel)
	}
	if res.Prediction != models.PredictionLow {
		t.Fatalf("expected Low on tie, got %s", res.Prediction)
	}

	res = c.Predict(history(t, L, L, H, L, L, H))
	if res.PatternLabel != PatternNone || res.Prediction != models.PredictionHigh {
		t.Fatalf("expected minority High fallback, got %+v", res)
	}
	if got := mustConfidence(t, res); got != 65 {
		t.Fatalf("expected 65, got %v", got)
	}
}

func TestCascadeUsesRecentWindowOnly(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	// Ten old Highs then an alternating tail: only the last 10 count.
	outs := []models.Outcome{H, H, H, H, H, H, H, H, H, H, L, H, L, H, L, H, L, H, L, H}
	res := c.Predict(history(t, outs...))
	if res.PatternLabel != PatternAlternating {
		t.Fatalf("expected alternating on the recent window, got %q", res.PatternLabel)
	}
	if res.Prediction != models.PredictionLow {
		t.Fatalf("expected Low, got %s", res.Prediction)
	}
}

func TestCascadeInsufficient(t *testing.T) {
	c := NewCascade(DefaultThresholds())

	for _, records := range [][]models.RoundRecord{nil, history(t, H)} {
		res := c.Predict(records)
		if !res.Insufficient() {
			t.Fatalf("expected insufficient for %d records, got %s", len(records), res.Prediction)
		}
		if res.Confidence != nil {
			t.Fatalf("insufficient result must not carry a confidence")
		}
		if res.Rationale == "" || res.PatternLabel != models.PatternInsufficient {
			t.Fatalf("unexpected insufficient result: %+v", res)
		}
	}
}

func TestCascadeDeterministicWithSeededSource(t *testing.T) {
	th := DefaultThresholds()
	th.Jitter = 5
	records := history(t, H, L, H, L)

	a := NewCascade(th, WithSource(rand.New(rand.NewSource(7)))).Predict(records)
	b := NewCascade(th, WithSource(rand.New(rand.NewSource(7)))).Predict(records)
	if *a.Confidence != *b.Confidence {
		t.Fatalf("expected identical confidences, got %v and %v", *a.Confidence, *b.Confidence)
	}
	if *a.Confidence < 80 || *a.Confidence > 90 {
		t.Fatalf("jitter escaped its bounds: %v", *a.Confidence)
	}
}

func TestCascadeClampsConfidence(t *testing.T) {
	th := DefaultThresholds()
	th.AlternatingConfidence = 150
	th.FallbackConfidence = 10

	res := NewCascade(th).Predict(history(t, H, L, H, L))
	if got := mustConfidence(t, res); got != th.ConfidenceMax {
		t.Fatalf("expected clamp to %v, got %v", th.ConfidenceMax, got)
	}
	res = NewCascade(th).Predict(history(t, H, H, L, L))
	if got := mustConfidence(t, res); got != th.ConfidenceMin {
		t.Fatalf("expected clamp to %v, got %v", th.ConfidenceMin, got)
	}
	if !strings.Contains(res.Rationale, "2 High / 2 Low") {
		t.Fatalf("unexpected rationale: %s", res.Rationale)
	}
}
