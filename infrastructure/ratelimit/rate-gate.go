package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "ratelimit")

// RateGate admits at most maxRequests within any window. Wait blocks until
// the oldest admission leaves the window.
type RateGate struct {
	maxRequests int
	window      time.Duration

	requests deque.Deque[time.Time]
	mu       sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateGate(maxRequests int, window time.Duration) *RateGate {
	if maxRequests < 1 {
		maxRequests = 1
	}

	return &RateGate{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Allow records an admission and reports true when a slot is free now.
func (g *RateGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.admitLocked()
	return ok
}

func (g *RateGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		wait, ok := g.admitLocked()
		g.mu.Unlock()

		if ok {
			return nil
		}

		logger.WithField("wait", wait).Debug("request window full, waiting")
		if err := g.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate gate: %w", err)
		}
	}
}

// InFlight returns the number of admissions still inside the window.
func (g *RateGate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evictLocked(g.now())
	return g.requests.Len()
}

func (g *RateGate) admitLocked() (time.Duration, bool) {
	now := g.now()
	g.evictLocked(now)

	if g.requests.Len() < g.maxRequests {
		g.requests.PushBack(now)
		return 0, true
	}

	return g.requests.Front().Add(g.window).Sub(now), false
}

func (g *RateGate) evictLocked(now time.Time) {
	for g.requests.Len() > 0 && !g.requests.Front().Add(g.window).After(now) {
		g.requests.PopFront()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
