package engine

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roundcast/roundcast/internal/models"
)

func TestRegistryResolve(t *testing.T) {
	reg, err := NewDefaultRegistry(StrategyCascade, DefaultThresholds())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	s, err := reg.Resolve("")
	if err != nil || s.Name() != StrategyCascade {
		t.Fatalf("expected default cascade, got %v %v", s, err)
	}
	s, err = reg.Resolve(" Dice-Parity ")
	if err != nil || s.Name() != StrategyDiceParity {
		t.Fatalf("expected dice-parity, got %v %v", s, err)
	}
	if _, err := reg.Resolve("martingale"); err == nil {
		t.Fatalf("expected unknown strategy error")
	}
	if diff := cmp.Diff([]string{StrategyCascade, StrategyDiceParity}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch:\n%s", diff)
	}
}

func TestRegistryUnknownDefault(t *testing.T) {
	if _, err := NewDefaultRegistry("coin-flip", DefaultThresholds()); err == nil {
		t.Fatalf("expected error for unknown default")
	}
}

func TestSeededSourceReproducibleAndConcurrent(t *testing.T) {
	a, b := NewSeededSource(42), NewSeededSource(42)
	for i := 0; i < 5; i++ {
		if x, y := a.Float64(), b.Float64(); x != y || x < 0 || x >= 1 {
			t.Fatalf("draw %d: %v vs %v", i, x, y)
		}
	}

	th := DefaultThresholds()
	th.Jitter = 2
	cascade := NewCascade(th, WithSource(a))
	records := history(t, models.OutcomeHigh, models.OutcomeLow)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := cascade.Predict(records)
			if res.Confidence == nil || *res.Confidence > th.ConfidenceMax {
				t.Errorf("unexpected confidence %v", res.Confidence)
			}
		}()
	}
	wg.Wait()
}
