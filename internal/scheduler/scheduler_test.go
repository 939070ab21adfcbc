package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 30 * time.Second, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2025, 6, 2, 5, 30, 10, 0, time.UTC)
	if got, want := s.nextTick(now, 30*time.Second), time.Date(2025, 6, 2, 5, 30, 30, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("nextTick = %s, want %s", got, want)
	}
	exact := time.Date(2025, 6, 2, 5, 30, 30, 0, time.UTC)
	if got := s.nextTick(exact, 30*time.Second); !got.Equal(exact.Add(30 * time.Second)) {
		t.Fatalf("边界时刻应跳到下一个桶: %s", got)
	}
	if got := s.bucketStart(now, 30*time.Second); !got.Equal(time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC)) {
		t.Fatalf("bucketStart 不正确: %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2025, 6, 2, 5, 30, 10, 0, time.UTC)
	if got := s.nextTick(now, time.Minute); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("nextTick = %s", got)
	}
	if got := s.bucketStart(now, time.Minute); !got.Equal(now) {
		t.Fatalf("bucketStart = %s", got)
	}
}

func TestIdleIntervalWhileClosed(t *testing.T) {
	closed := func(at time.Time) bool { return at.Hour() >= 10 }
	s := New(Options{Interval: 30 * time.Second, IdleInterval: 5 * time.Minute, Idle: closed, AlignToStart: true}, zerolog.Nop())

	open := time.Date(2025, 6, 2, 9, 59, 10, 0, time.UTC)
	if got := s.interval(open); got != 30*time.Second {
		t.Fatalf("开市时间应使用常规间隔: %s", got)
	}
	late := time.Date(2025, 6, 2, 10, 1, 10, 0, time.UTC)
	step := s.interval(late)
	if step != 5*time.Minute {
		t.Fatalf("闭市时间应使用空闲间隔: %s", step)
	}
	if got, want := s.nextTick(late, step), time.Date(2025, 6, 2, 10, 5, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("nextTick = %s, want %s", got, want)
	}

	noIdle := New(Options{Interval: time.Minute, Idle: closed}, zerolog.Nop())
	if got := noIdle.interval(late); got != time.Minute {
		t.Fatalf("未配置空闲间隔时不应切换: %s", got)
	}
}

func TestRunImmediatelyAndCancel(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond, RunImmediately: true}, zerolog.Nop())

	var mu sync.Mutex
	ticks := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			ticks++
			if ticks == 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run 应返回 context.Canceled: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在超时前退出")
	}
	mu.Lock()
	defer mu.Unlock()
	if ticks < 3 {
		t.Fatalf("tick 次数不足: %d", ticks)
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("零间隔应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
