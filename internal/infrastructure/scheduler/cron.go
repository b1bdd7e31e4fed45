package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PaperScanner/internal/ports"
)

// CronScheduler fires jobs on a cron expression or a fixed interval.
type CronScheduler struct {
	spec       string
	loc        *time.Location
	runOnStart bool
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// Options configures a CronScheduler. Expression wins over Interval.
type Options struct {
	Expression string
	Interval   time.Duration
	Location   *time.Location
	RunOnStart bool
	Logger     *slog.Logger
}

// NewCronScheduler validates the schedule and builds a stopped scheduler.
func NewCronScheduler(opts Options) (*CronScheduler, error) {
	spec := opts.Expression
	if spec == "" {
		if opts.Interval <= 0 {
			return nil, errors.New("scheduler needs a cron expression or a positive interval")
		}
		spec = "@every " + opts.Interval.String()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &CronScheduler{
		spec:       spec,
		loc:        loc,
		runOnStart: opts.RunOnStart,
		logger:     opts.Logger,
	}, nil
}

// Spec returns the effective cron specification.
func (c *CronScheduler) Spec() string {
	return c.spec
}

// Next returns the next fire time after t.
func (c *CronScheduler) Next(t time.Time) time.Time {
	schedule, err := cron.ParseStandard(c.spec)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(t.In(c.loc))
}

// Start registers job and begins firing. It stops by itself when ctx ends.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cr := cron.New(cron.WithLocation(c.loc))
	if _, err := cr.AddFunc(c.spec, func() {
		job(time.Now().In(c.loc))
	}); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	cr.Start()
	c.cron = cr

	if c.logger != nil {
		c.logger.Info("scheduler started", "spec", c.spec, "next", c.Next(time.Now()))
	}

	if c.runOnStart {
		go job(time.Now().In(c.loc))
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx ends.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	select {
	case <-cr.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
