// Package ingest keeps the history warm between API calls by polling the
// upstream feed on a cron schedule.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roundcast/roundcast/internal/cache"
	"github.com/roundcast/roundcast/internal/models"
)

// LockKey guards a poll tick across replicas sharing one cache.
const LockKey = "roundcast:ingest-lock"

// Ingester fetches and stores the latest round.
type Ingester interface {
	Ingest(ctx context.Context) (models.RoundRecord, bool, error)
}

// Poller runs Ingest on a schedule. At most one tick runs at a time, and
// with a shared cache at most one replica polls per lock window.
type Poller struct {
	logger   *slog.Logger
	ingester Ingester
	locks    cache.Provider
	lockTTL  time.Duration
	owner    string
	timeout  time.Duration
	cron     *cron.Cron
}

// NewPoller validates the schedule and registers the tick. lockTTL also
// bounds how long a single tick may run.
func NewPoller(logger *slog.Logger, ingester Ingester, locks cache.Provider, schedule string, lockTTL time.Duration) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = cache.NoopProvider{}
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	host, _ := os.Hostname()
	p := &Poller{
		logger:   logger.With(slog.String("component", "ingest")),
		ingester: ingester,
		locks:    locks,
		lockTTL:  lockTTL,
		owner:    fmt.Sprintf("%s/%d", host, os.Getpid()),
		timeout:  lockTTL,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.Tick(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse ingest schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins scheduling ticks in the background.
func (p *Poller) Start() {
	p.cron.Start()
	p.logger.Info("ingest poller started", slog.Int("jobs", len(p.cron.Entries())))
}

// Stop halts scheduling and waits for a running tick, or for ctx to expire.
func (p *Poller) Stop(ctx context.Context) {
	done := p.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	p.logger.Info("ingest poller stopped")
}

// Tick performs one guarded ingest. It reports whether the lock was taken.
func (p *Poller) Tick(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	acquired, err := p.locks.SetNX(ctx, LockKey, []byte(p.owner), p.lockTTL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("ingest lock unavailable", slog.Any("error", err))
		}
		return false
	}
	if !acquired {
		p.logger.Debug("ingest tick held by another instance")
		return false
	}

	rec, added, err := p.ingester.Ingest(ctx)
	if err != nil {
		p.logger.Warn("ingest tick failed", slog.Any("error", err))
		return true
	}
	p.logger.Debug("ingest tick complete", slog.Int64("round_id", rec.RoundID), slog.Bool("added", added))
	return true
}
