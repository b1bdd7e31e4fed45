package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"PaperScanner/internal/ports"
)

// CycleFunc runs one cycle for a trigger time.
type CycleFunc func(ctx context.Context, trigger time.Time) CycleReport

// Scheduler wires the cron driver with the cycle runner.
type Scheduler struct {
	driver  ports.Scheduler
	cycle   CycleFunc
	timeout time.Duration
	running atomic.Bool
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring cycles. A positive
// timeout bounds each cycle.
func NewScheduler(driver ports.Scheduler, cycle CycleFunc, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, cycle: cycle, timeout: timeout, logger: logger}
}

// Start registers the cycle with the provided scheduler. Triggers that fire
// while a cycle is still running are dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.cycle == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Trigger(ctx, trigger)
	})
}

// Trigger runs one cycle now unless another is in progress. It reports
// whether a cycle ran.
func (s *Scheduler) Trigger(ctx context.Context, trigger time.Time) bool {
	if !s.running.CompareAndSwap(false, true) {
		if s.logger != nil {
			s.logger.Warn("previous cycle still running, trigger dropped", "trigger", trigger)
		}
		return false
	}
	defer s.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.cycle(ctx, trigger)
	return true
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
