package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultRatePerSec = 5
	windowLength      = time.Second
)

var _ RateLimiter = (*SlidingWindow)(nil)

// SlidingWindow is an in-process limiter shared by all pushes in one process.
// It keeps a log of grant times per scope and grants a call only when fewer
// than ratePerSec grants fall inside the trailing one-second window, so the
// budget holds for any rolling second, not just aligned ones. The clock and
// sleep are injectable so the limiter can be driven deterministically in
// tests.
type SlidingWindow struct {
	mu         sync.Mutex
	ratePerSec int
	scopes     map[string][]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSlidingWindow(ratePerSec int) *SlidingWindow {
	return newSlidingWindow(ratePerSec, time.Now, sleepWithContext)
}

func newSlidingWindow(
	ratePerSec int,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) *SlidingWindow {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SlidingWindow{
		ratePerSec: ratePerSec,
		scopes:     make(map[string][]time.Time),
		now:        nowFn,
		sleep:      sleepFn,
	}
}

func (w *SlidingWindow) Allow(ctx context.Context, scope string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	allowed, _, err := w.take(scope)
	return allowed, err
}

func (w *SlidingWindow) Wait(ctx context.Context, scope string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		allowed, wait, err := w.take(scope)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// take records a grant when the trailing window has room, otherwise returns
// how long until the oldest grant leaves the window.
func (w *SlidingWindow) take(scope string) (bool, time.Duration, error) {
	normalized := strings.TrimSpace(scope)
	if normalized == "" {
		return false, 0, fmt.Errorf("scope is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-windowLength)

	grants := w.scopes[normalized]
	kept := grants[:0]
	for _, grant := range grants {
		if grant.After(cutoff) {
			kept = append(kept, grant)
		}
	}

	if len(kept) < w.ratePerSec {
		kept = append(kept, now)
		w.scopes[normalized] = kept
		return true, 0, nil
	}
	w.scopes[normalized] = kept

	wait := kept[0].Add(windowLength).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}

	return false, wait, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
