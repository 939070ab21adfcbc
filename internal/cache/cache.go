// Package cache memoises expensive group fetches for a bounded time.
package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ComputeFunc produces a fresh value on a miss. It cannot fail: callers fold
// failures into the value itself so that failed attempts are cached too.
type ComputeFunc[V any] func(ctx context.Context) V

// Cache maps a key to a value with a per-key time to live.
type Cache[V any] interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) V
	Clear(ctx context.Context) error
}

// Observer is notified of every lookup.
type Observer func(key string, hit bool)

type options struct {
	now      func() time.Time
	observer Observer
	logger   zerolog.Logger
}

// Option configures a cache backend.
type Option func(*options)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithObserver registers a hit/miss callback.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", component).Logger()
	return o
}

func (o options) observe(key string, hit bool) {
	if o.observer != nil {
		o.observer(key, hit)
	}
}
