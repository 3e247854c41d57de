package engine

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds tunes the heuristics. Zero values in a YAML override keep the
// defaults.
type Thresholds struct {
	Window     int `yaml:"window"`
	MinHistory int `yaml:"min_history"`

	StreakMin  int     `yaml:"streak_min"`
	StreakBase float64 `yaml:"streak_base"`
	StreakStep float64 `yaml:"streak_step"`
	StreakCap  float64 `yaml:"streak_cap"`

	SkewMargin     int     `yaml:"skew_margin"`
	SkewConfidence float64 `yaml:"skew_confidence"`

	AlternatingLength     int     `yaml:"alternating_length"`
	AlternatingConfidence float64 `yaml:"alternating_confidence"`

	TwoOneTwoConfidence float64 `yaml:"two_one_two_confidence"`
	FallbackConfidence  float64 `yaml:"fallback_confidence"`

	DiceParityConfidence float64 `yaml:"dice_parity_confidence"`

	ConfidenceMin float64 `yaml:"confidence_min"`
	ConfidenceMax float64 `yaml:"confidence_max"`

	// Jitter is the half-width of the random adjustment applied to
	// confidences when a Source is supplied.
	Jitter float64 `yaml:"jitter"`
}

// DefaultThresholds returns the canonical heuristic policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:                10,
		MinHistory:            2,
		StreakMin:             3,
		StreakBase:            60,
		StreakStep:            5,
		StreakCap:             90,
		SkewMargin:            2,
		SkewConfidence:        70,
		AlternatingLength:     4,
		AlternatingConfidence: 85,
		TwoOneTwoConfidence:   80,
		FallbackConfidence:    65,
		DiceParityConfidence:  70,
		ConfidenceMin:         60,
		ConfidenceMax:         99.99,
	}
}

// LoadThresholds reads YAML overrides from path. An empty path or a missing
// file yields the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return th, nil
		}
		return Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}
	var override Thresholds
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	th.merge(override)
	if err := th.Validate(); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

// Validate rejects settings the heuristics cannot work with.
func (t Thresholds) Validate() error {
	switch {
	case t.Window < 1:
		return fmt.Errorf("thresholds: window must be positive, got %d", t.Window)
	case t.MinHistory < 1:
		return fmt.Errorf("thresholds: min_history must be positive, got %d", t.MinHistory)
	case t.StreakMin < 2:
		return fmt.Errorf("thresholds: streak_min must be at least 2, got %d", t.StreakMin)
	case t.AlternatingLength < 3:
		return fmt.Errorf("thresholds: alternating_length must be at least 3, got %d", t.AlternatingLength)
	case t.SkewMargin < 0:
		return fmt.Errorf("thresholds: skew_margin must not be negative, got %d", t.SkewMargin)
	case t.ConfidenceMin > t.ConfidenceMax:
		return fmt.Errorf("thresholds: confidence_min %.2f above confidence_max %.2f", t.ConfidenceMin, t.ConfidenceMax)
	case t.Jitter < 0:
		return fmt.Errorf("thresholds: jitter must not be negative")
	}
	return nil
}

func (t *Thresholds) merge(o Thresholds) {
	setInt(&t.Window, o.Window)
	setInt(&t.MinHistory, o.MinHistory)
	setInt(&t.StreakMin, o.StreakMin)
	setFloat(&t.StreakBase, o.StreakBase)
	setFloat(&t.StreakStep, o.StreakStep)
	setFloat(&t.StreakCap, o.StreakCap)
	setInt(&t.SkewMargin, o.SkewMargin)
	setFloat(&t.SkewConfidence, o.SkewConfidence)
	setInt(&t.AlternatingLength, o.AlternatingLength)
	setFloat(&t.AlternatingConfidence, o.AlternatingConfidence)
	setFloat(&t.TwoOneTwoConfidence, o.TwoOneTwoConfidence)
	setFloat(&t.FallbackConfidence, o.FallbackConfidence)
	setFloat(&t.DiceParityConfidence, o.DiceParityConfidence)
	setFloat(&t.ConfidenceMin, o.ConfidenceMin)
	setFloat(&t.ConfidenceMax, o.ConfidenceMax)
	setFloat(&t.Jitter, o.Jitter)
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
