package recurrence

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the scheduler sweeps when no interval is set.
const DefaultInterval = time.Hour

// Sweeper runs sweeps over due charges.
type Sweeper interface {
	ProcessAllDue(ctx context.Context) (SweepResult, error)
	ProcessOwner(ctx context.Context, ownerID int64) (SweepResult, error)
}

// Scheduler runs the sweep periodically in the background.
type Scheduler struct {
	sweeper    Sweeper
	interval   time.Duration
	runOnStart bool
}

// NewScheduler creates a scheduler. A non-positive interval uses DefaultInterval.
func NewScheduler(sweeper Sweeper, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		sweeper:    sweeper,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Run sweeps on start when configured, then once per interval until ctx is
// cancelled. Sweep errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("recurring charge scheduler started", "interval", s.interval.String())

	if s.runOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			slog.Info("recurring charge scheduler stopped")
			return
		}
	}
}

// ProcessOwner processes one owner's due charges right away.
func (s *Scheduler) ProcessOwner(ctx context.Context, ownerID int64) (SweepResult, error) {
	result, err := s.sweeper.ProcessOwner(ctx, ownerID)
	if err != nil {
		slog.Error("on-demand recurring charge processing failed", "owner_id", ownerID, "error", err)
	}
	return result, err
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.sweeper.ProcessAllDue(ctx); err != nil && ctx.Err() == nil {
		slog.Error("recurring charge sweep failed", "error", err)
	}
}
