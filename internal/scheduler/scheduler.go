// Package scheduler runs the periodic sweeps that close due auctions and
// breach overdue contracts. When a lock manager is configured, only one
// instance in the fleet executes a given tick.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
)

const sweepLockKey = "sweep"

// Sweeper is the work a tick executes.
type Sweeper interface {
	Sweep(ctx context.Context) (engine.SweepReport, error)
}

// Scheduler ticks at a fixed interval and runs the sweeper.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	locks    domain.LockManager // optional
	logger   *slog.Logger
}

// New creates a Scheduler. Pass a nil lock manager to run unlocked, e.g. in
// single-instance or simulate deployments.
func New(sweeper Sweeper, interval time.Duration, locks domain.LockManager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		locks:    locks,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until ctx is cancelled. It returns ctx.Err() on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one sweep pass, guarded by the distributed lock when configured.
func (s *Scheduler) tick(ctx context.Context) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, sweepLockKey, s.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			return // another instance has this tick
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "acquire sweep lock", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
		return
	}
	if report.AuctionsClosed > 0 || report.ContractsBreached > 0 || report.Errors > 0 {
		s.logger.InfoContext(ctx, "sweep done",
			slog.Int("auctions_closed", report.AuctionsClosed),
			slog.Int("contracts_breached", report.ContractsBreached),
			slog.Int("errors", report.Errors),
		)
	}
}
