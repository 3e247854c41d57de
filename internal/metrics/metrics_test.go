package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveCycleNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(cyclesTotal.WithLabelValues(OutcomeError))
	ObserveCycle(-time.Second, "something-else")
	after := testutil.ToFloat64(cyclesTotal.WithLabelValues(OutcomeError))
	if after != before+1 {
		t.Fatalf("expected error counter to increase by one, got %v -> %v", before, after)
	}
}

func TestObserveUpsert(t *testing.T) {
	before := testutil.ToFloat64(upsertsTotal.WithLabelValues("added"))
	ObserveUpsert(true, 7)
	if got := testutil.ToFloat64(upsertsTotal.WithLabelValues("added")); got != before+1 {
		t.Fatalf("expected added counter to increase")
	}
	if got := testutil.ToFloat64(historySize); got != 7 {
		t.Fatalf("expected history size gauge 7, got %v", got)
	}
}
