package devkit

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a manual clock advanced by FakeSleeper.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FakeSleeper records requested sleeps and advances Clock instead of
// blocking.
type FakeSleeper struct {
	mu     sync.Mutex
	Clock  *FakeClock
	sleeps []time.Duration
}

func NewFakeSleeper(clock *FakeClock) *FakeSleeper {
	return &FakeSleeper{Clock: clock}
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	if s.Clock != nil {
		s.Clock.Advance(d)
	}
	return nil
}

func (s *FakeSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

func (s *FakeSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Sleeps() {
		total += d
	}
	return total
}
