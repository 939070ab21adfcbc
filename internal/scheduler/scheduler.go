package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every aligned interval.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// IdleInterval replaces Interval whenever Idle reports true, e.g. while
	// the exchange is closed and quotes cannot move. Zero disables it.
	IdleInterval time.Duration
	Idle         func(time.Time) bool
	AlignToStart bool
	StartupDelay time.Duration
	// RunImmediately fires one tick as soon as the startup delay elapses,
	// before waiting for the first aligned bucket.
	RunImmediately bool
}

// Scheduler drives periodic snapshot refreshes.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.IdleInterval < 0 {
		opts.IdleInterval = 0
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking the tick function at each aligned interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	if s.opts.RunImmediately {
		now := s.now().UTC()
		s.execute(ctx, tick, s.bucketStart(now, s.interval(now)))
	}

	for {
		now := s.now().UTC()
		step := s.interval(now)
		next := s.nextTick(now, step)
		s.logger.Debug().Time("next_bucket", next).Dur("step", step).Msg("waiting for next bucket")

		if err := sleep(ctx, next.Sub(now)); err != nil {
			return err
		}
		s.execute(ctx, tick, s.bucketStart(next, step))
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, bucket time.Time) {
	s.logger.Debug().Time("bucket", bucket).Msg("executing scheduled tick")
	if err := tick(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
	}
}

// interval returns the step in force at now.
func (s *Scheduler) interval(now time.Time) time.Duration {
	if s.opts.IdleInterval > 0 && s.opts.Idle != nil && s.opts.Idle(now) {
		return s.opts.IdleInterval
	}
	return s.opts.Interval
}

func (s *Scheduler) nextTick(now time.Time, step time.Duration) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(step)
	}
	bucket := now.Truncate(step)
	if !bucket.After(now) {
		bucket = bucket.Add(step)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time, step time.Duration) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(step)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
