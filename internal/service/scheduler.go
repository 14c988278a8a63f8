package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// entry is a registered task with its timing.
type entry struct {
	name       string
	task       Task
	next       func(now time.Time) time.Time
	interval   time.Duration // 仅 Every 任务
	runAtStart bool
}

// Scheduler runs the periodic collection, evaluation and retention jobs of
// the serve command. Each task runs in its own loop, so a slow run delays
// only its own next tick and runs of the same task never overlap.
type Scheduler struct {
	entries []entry
	now     func() time.Time
	logger  zerolog.Logger
}

// SchedulerOption is a functional option for configuring a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the scheduler clock.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(logger zerolog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		now:    time.Now,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every runs task immediately and then every interval. Run rejects a
// non-positive interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	s.entries = append(s.entries, entry{
		name:       name,
		task:       task,
		next:       func(now time.Time) time.Time { return now.Add(interval) },
		interval:   interval,
		runAtStart: true,
	})
}

// Daily runs task once a day at the given offset from midnight in loc.
func (s *Scheduler) Daily(name string, at time.Duration, loc *time.Location, task Task) {
	if loc == nil {
		loc = time.Local
	}
	s.entries = append(s.entries, entry{
		name: name,
		task: task,
		next: func(now time.Time) time.Time { return nextDaily(now, at, loc) },
	})
}

// Run blocks until ctx is cancelled. Task errors are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("no scheduled tasks")
	}
	for _, e := range s.entries {
		if e.runAtStart && e.interval <= 0 {
			return fmt.Errorf("task %q: interval must be greater than 0, got %s", e.name, e.interval)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		s.logger.Info().Str("task", e.name).Time("next_run", e.next(s.now())).Msg("task scheduled")
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	if e.runAtStart {
		s.runOnce(ctx, e)
	}

	for {
		now := s.now()
		timer := time.NewTimer(e.next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runOnce(ctx, e)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e entry) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", e.name).Interface("panic", r).Msg("task panicked")
		}
	}()

	if err := e.task(ctx); err != nil {
		s.logger.Error().Err(err).Str("task", e.name).Dur("duration", time.Since(start)).Msg("task failed")
		return
	}
	s.logger.Debug().Str("task", e.name).Dur("duration", time.Since(start)).Msg("task finished")
}

// nextDaily returns the first instant strictly after now that falls at
// offset at from midnight in loc.
func nextDaily(now time.Time, at time.Duration, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()

	next := time.Date(y, m, d, 0, 0, 0, 0, loc).Add(at)
	if !next.After(local) {
		next = time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(at)
	}
	return next
}
