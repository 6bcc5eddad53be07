package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
)

type countingSweeper struct {
	calls atomic.Int64
}

func (c *countingSweeper) Sweep(context.Context) (engine.SweepReport, error) {
	c.calls.Add(1)
	return engine.SweepReport{}, nil
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestRunTicksUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(sweeper, 10*time.Millisecond, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if sweeper.calls.Load() == 0 {
		t.Fatal("expected at least one sweep tick")
	}
}

func TestHeldLockSkipsTick(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(sweeper, 10*time.Millisecond, heldLocks{}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_ = s.Run(ctx)
	if n := sweeper.calls.Load(); n != 0 {
		t.Fatalf("expected no sweeps under a held lock, got %d", n)
	}
}
