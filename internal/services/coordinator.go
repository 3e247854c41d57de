package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roundcast/roundcast/internal/engine"
	"github.com/roundcast/roundcast/internal/metrics"
	"github.com/roundcast/roundcast/internal/models"
	"github.com/roundcast/roundcast/internal/utils"
)

// RoundFetcher retrieves the latest raw round from the upstream feed.
type RoundFetcher interface {
	FetchLatest(ctx context.Context) (models.RawRound, error)
}

// HistoryStore is the bounded round history the coordinator writes to.
type HistoryStore interface {
	Upsert(rec models.RoundRecord) (bool, error)
	Snapshot() []models.RoundRecord
	Len() int
	Capacity() int
}

// Coordinator runs the fetch -> normalise -> upsert -> predict cycle.
type Coordinator struct {
	logger   *slog.Logger
	fetcher  RoundFetcher
	store    HistoryStore
	registry *engine.Registry
}

// NewCoordinator wires the cycle dependencies.
func NewCoordinator(logger *slog.Logger, fetcher RoundFetcher, store HistoryStore, registry *engine.Registry) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger:   logger,
		fetcher:  fetcher,
		store:    store,
		registry: registry,
	}
}

// Cycle fetches the latest round, merges it into history and predicts the next
// outcome with the named strategy (the default when empty). Failures are
// AppErrors of kind invalid_argument, upstream or validation; history is left
// untouched on any failure.
func (c *Coordinator) Cycle(ctx context.Context, strategyName string) (models.CycleResponse, error) {
	strategy, err := c.registry.Resolve(strategyName)
	if err != nil {
		return models.CycleResponse{}, utils.NewAppError("coordinator.cycle", utils.KindInvalidArgument, "unknown strategy", err)
	}

	start := time.Now()
	rec, _, err := c.Ingest(ctx)
	if err != nil {
		metrics.ObserveCycle(time.Since(start), outcomeLabel(err))
		return models.CycleResponse{}, err
	}

	snapshot := c.store.Snapshot()
	result := strategy.Predict(snapshot)
	metrics.ObservePrediction(strategy.Name(), result.PatternLabel)
	metrics.ObserveCycle(time.Since(start), metrics.OutcomeSuccess)

	c.logger.Debug("prediction produced",
		slog.Int64("round_id", rec.RoundID),
		slog.String("strategy", strategy.Name()),
		slog.String("prediction", string(result.Prediction)),
		slog.String("pattern", result.PatternLabel),
		slog.Int("history", len(snapshot)),
	)

	return models.NewCycleResponse(&rec, result, len(snapshot)), nil
}

// Ingest fetches and stores the latest round without predicting. It reports
// whether the round was new to the history.
func (c *Coordinator) Ingest(ctx context.Context) (models.RoundRecord, bool, error) {
	raw, err := c.fetcher.FetchLatest(ctx)
	if err != nil {
		if utils.KindOf(err) != utils.KindUpstream {
			err = utils.NewAppError("coordinator.ingest", utils.KindUpstream, "fetch latest round", err)
		}
		c.logger.Warn("upstream fetch failed", slog.Any("error", err))
		return models.RoundRecord{}, false, err
	}

	rec, err := models.Normalize(raw)
	if err != nil {
		c.logger.Warn("rejected malformed round", slog.Any("error", err))
		return models.RoundRecord{}, false, utils.NewAppError("coordinator.ingest", utils.KindValidation, "malformed round", err)
	}
	if mismatches := models.Discrepancies(raw, rec); len(mismatches) > 0 {
		c.logger.Warn("upstream fields disagree with dice",
			slog.Int64("round_id", rec.RoundID),
			slog.String("mismatches", strings.Join(mismatches, "; ")),
		)
	}

	added, err := c.store.Upsert(rec)
	if err != nil {
		return models.RoundRecord{}, false, utils.NewAppError("coordinator.ingest", utils.KindValidation, "round rejected by history", err)
	}
	size := c.store.Len()
	metrics.ObserveUpsert(added, size)
	if added {
		c.logger.Info("round added to history", slog.Int64("round_id", rec.RoundID), slog.Int("history", size))
	} else {
		c.logger.Debug("round already in history", slog.Int64("round_id", rec.RoundID), slog.Int("history", size))
	}
	return rec, added, nil
}

// History returns the current history snapshot, oldest first.
func (c *Coordinator) History() []models.RoundRecord {
	return c.store.Snapshot()
}

// Capacity returns the history bound.
func (c *Coordinator) Capacity() int {
	return c.store.Capacity()
}

// Strategies lists the selectable strategy names.
func (c *Coordinator) Strategies() []string {
	return c.registry.Names()
}

func outcomeLabel(err error) string {
	switch utils.KindOf(err) {
	case utils.KindUpstream:
		return metrics.OutcomeUpstream
	case utils.KindValidation:
		return metrics.OutcomeValidation
	default:
		return metrics.OutcomeError
	}
}
