// Package ratelimit enforces per-source call spacing and daily call budgets.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned by Acquire once a source has used its daily budget.
var ErrBudgetExhausted = errors.New("daily call budget exhausted")

// Policy describes the limits for one source. A zero DailyLimit means unlimited.
type Policy struct {
	MinInterval time.Duration
	DailyLimit  int
}

// Usage reports the calls a source has made today.
type Usage struct {
	Source string
	Day    string
	Calls  int
	Limit  int
}

// WaitObserver is told how long each Acquire blocked.
type WaitObserver func(source string, waited time.Duration)

type sourceState struct {
	policy      Policy
	limiter     *rate.Limiter
	day         string
	calls       int
	lastAcquire time.Time
}

// Gate tracks RateState per source.
type Gate struct {
	mu       sync.Mutex
	sources  map[string]*sourceState
	loc      *time.Location
	now      func() time.Time
	observer WaitObserver
	logger   zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the clock used for the daily counter.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithLocation sets the timezone in which days roll over.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithWaitObserver registers a callback receiving every wait duration.
func WithWaitObserver(observer WaitObserver) Option {
	return func(g *Gate) {
		g.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger.With().Str("component", "rate_gate").Logger()
	}
}

// New constructs an empty gate. Sources that were never registered pass through.
func New(opts ...Option) *Gate {
	g := &Gate{
		sources: make(map[string]*sourceState),
		loc:     time.UTC,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register installs or replaces the policy for a source, resetting its state.
func (g *Gate) Register(source string, policy Policy) {
	var limiter *rate.Limiter
	if policy.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(policy.MinInterval), 1)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sources[source] = &sourceState{policy: policy, limiter: limiter, day: g.dayKey()}
}

// Acquire blocks until the source may be called again. It fails closed with
// ErrBudgetExhausted, without waiting, once today's budget is spent.
func (g *Gate) Acquire(ctx context.Context, source string) error {
	g.mu.Lock()
	st, ok := g.sources[source]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	g.rollover(st)
	if st.policy.DailyLimit > 0 && st.calls >= st.policy.DailyLimit {
		calls, day := st.calls, st.day
		g.mu.Unlock()
		g.logger.Warn().Str("source", source).Int("calls", calls).Str("day", day).Msg("daily budget exhausted")
		return fmt.Errorf("%w: %s made %d calls on %s", ErrBudgetExhausted, source, calls, day)
	}
	limiter := st.limiter
	g.mu.Unlock()

	if limiter == nil {
		return nil
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate gate wait: %w", err)
	}

	// The limiter measures from reservation time; spacing is promised at the
	// return boundary, so top up any scheduling slack.
	g.mu.Lock()
	remaining := st.policy.MinInterval - time.Since(st.lastAcquire)
	g.mu.Unlock()
	if remaining > 0 {
		if err := sleep(ctx, remaining); err != nil {
			return fmt.Errorf("rate gate wait: %w", err)
		}
	}

	g.mu.Lock()
	st.lastAcquire = time.Now()
	g.mu.Unlock()

	waited := time.Since(start)
	if waited > time.Millisecond {
		g.logger.Debug().Str("source", source).Dur("waited", waited).Msg("rate gate delayed call")
	}
	if g.observer != nil {
		g.observer(source, waited)
	}
	return nil
}

// Record counts one issued call against today's budget.
func (g *Gate) Record(source string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.sources[source]
	if !ok {
		return
	}
	g.rollover(st)
	st.calls++
}

// Remaining returns the calls left today, or -1 when unlimited or unregistered.
func (g *Gate) Remaining(source string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.sources[source]
	if !ok || st.policy.DailyLimit <= 0 {
		return -1
	}
	g.rollover(st)
	if left := st.policy.DailyLimit - st.calls; left > 0 {
		return left
	}
	return 0
}

// Usage lists today's counters for every registered source, sorted by name.
func (g *Gate) Usage() []Usage {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Usage, 0, len(g.sources))
	for name, st := range g.sources {
		g.rollover(st)
		out = append(out, Usage{Source: name, Day: st.day, Calls: st.calls, Limit: st.policy.DailyLimit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// rollover resets the counter when the date changed. Caller holds g.mu.
func (g *Gate) rollover(st *sourceState) {
	if day := g.dayKey(); day != st.day {
		st.day = day
		st.calls = 0
	}
}

func (g *Gate) dayKey() string {
	return g.now().In(g.loc).Format("2006-01-02")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
