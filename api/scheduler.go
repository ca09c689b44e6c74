/*
scheduler.go - Automated accrual scheduler

PURPOSE:
  Periodically posts monthly accruals and carryover expiries so balances
  include them without an admin call.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start, then on every tick
  - Each run is idempotent: rows carry an idempotency key, so a month
    already posted is skipped

CONFIGURATION:
  - Interval: How often to run (default: 1 hour, ACCRUAL_INTERVAL)
  - Enabled: Whether scheduler is active (default: true, ACCRUAL_ENABLED)

USAGE:
  scheduler := NewAccrualScheduler(runner, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccruals endpoint (manual run)
  - generic/accrual.go: AccrualRunner
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// AccrualScheduler runs the accrual runner on a ticker.
type AccrualScheduler struct {
	Runner   *generic.AccrualRunner
	Clock    generic.Clock
	Interval time.Duration
	Enabled  bool
	Log      *slog.Logger

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   atomic.Int64
}

func NewAccrualScheduler(runner *generic.AccrualRunner, log *slog.Logger) *AccrualScheduler {
	return &AccrualScheduler{
		Runner:   runner,
		Interval: 1 * time.Hour,
		Enabled:  true,
		Log:      log,
	}
}

func (s *AccrualScheduler) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Start begins the scheduler. Calling it twice is a no-op.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger().Info("accrual scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run(ctx, s.ticker)

	s.logger().Info("accrual scheduler started", "interval", s.Interval.String())
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.logger().Info("accrual scheduler stopped")
}

// Runs returns how many runs completed without error.
func (s *AccrualScheduler) Runs() int {
	return int(s.runs.Load())
}

func (s *AccrualScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow posts everything due today.
func (s *AccrualScheduler) RunNow(ctx context.Context) (generic.AccrualSummary, error) {
	today := s.Clock.Today()
	summary, err := s.Runner.Run(ctx, today)
	if err != nil {
		if ctx.Err() == nil {
			s.logger().ErrorContext(ctx, "accrual run failed", "today", today.String(), "error", err)
		}
		return summary, err
	}
	s.runs.Add(1)
	return summary, nil
}
