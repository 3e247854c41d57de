package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels cycles that produced a prediction (including insufficient-data results).
	OutcomeSuccess = "success"
	// OutcomeValidation labels cycles rejected because upstream data was malformed.
	OutcomeValidation = "validation_error"
	// OutcomeUpstream labels cycles that failed to reach the upstream feed.
	OutcomeUpstream = "upstream_error"
	// OutcomeError labels any other failure.
	OutcomeError = "error"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roundcast",
			Name:      "cycles_total",
			Help:      "Fetch/upsert/predict cycles handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "roundcast",
			Name:      "cycle_seconds",
			Help:      "Cycle latency in seconds, dominated by the upstream fetch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roundcast",
			Name:      "predictions_total",
			Help:      "Predictions produced, partitioned by strategy and matched pattern.",
		},
		[]string{"strategy", "pattern"},
	)

	upsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roundcast",
			Name:      "upserts_total",
			Help:      "History upserts, partitioned by whether the round was new.",
		},
		[]string{"result"},
	)

	historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "roundcast",
			Name:      "history_size",
			Help:      "Number of rounds currently retained in history.",
		},
	)
)

// Register attaches roundcast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		predictionsTotal,
		upsertsTotal,
		historySize,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records a cycle duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeValidation, OutcomeUpstream:
	default:
		outcome = OutcomeError
	}
	cyclesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObservePrediction counts a produced prediction.
func ObservePrediction(strategy, pattern string) {
	predictionsTotal.WithLabelValues(strategy, pattern).Inc()
}

// ObserveUpsert counts an upsert and records the resulting history size.
func ObserveUpsert(added bool, size int) {
	result := "duplicate"
	if added {
		result = "added"
	}
	upsertsTotal.WithLabelValues(result).Inc()
	historySize.Set(float64(size))
}
