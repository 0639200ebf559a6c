package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives the limiter deterministically: sleeps advance time.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
}

func newTestLimiter(maxPerMinute int, delay time.Duration) (*rateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	l := newRateLimiter(maxPerMinute, delay)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestLimiterBelowWindowDoesNotPause(t *testing.T) {
	l, clock := newTestLimiter(3, 0)
	ctx := context.Background()

	l.wait(ctx)
	l.wait(ctx)

	assert.Empty(t, clock.slept)
}

func TestLimiterBlocksUntilOldestLeavesWindow(t *testing.T) {
	l, clock := newTestLimiter(2, 0)
	ctx := context.Background()

	l.wait(ctx)
	clock.current = clock.current.Add(10 * time.Second)
	l.wait(ctx)
	clock.current = clock.current.Add(5 * time.Second)

	// Window holds 2 stamps; the oldest is 15s old, so the third caller
	// must wait the remaining 45s.
	l.wait(ctx)

	assert.Equal(t, []time.Duration{45 * time.Second}, clock.slept)
}

func TestLimiterExpiredStampsAreDropped(t *testing.T) {
	l, clock := newTestLimiter(2, 0)
	ctx := context.Background()

	l.wait(ctx)
	l.wait(ctx)
	clock.current = clock.current.Add(61 * time.Second)

	l.wait(ctx)

	assert.Empty(t, clock.slept, "stamps older than the window must not block")
}

func TestLimiterRechecksWindowAfterWaking(t *testing.T) {
	l, clock := newTestLimiter(1, 0)
	// Wake early: every sleep advances a fixed 20s no matter what pause was
	// requested. A caller woken before the window cleared must go back to
	// sleep instead of claiming a slot.
	l.sleep = func(_ context.Context, d time.Duration) {
		clock.slept = append(clock.slept, d)
		clock.current = clock.current.Add(20 * time.Second)
	}
	ctx := context.Background()

	l.wait(ctx)
	l.wait(ctx)

	assert.Equal(t, []time.Duration{
		60 * time.Second,
		40 * time.Second,
		20 * time.Second,
	}, clock.slept)
	assert.Len(t, l.stamps, 1, "exactly one slot held after the window cleared")
}

func TestLimiterInterRequestDelayAlwaysApplies(t *testing.T) {
	l, clock := newTestLimiter(10, 2*time.Second)
	ctx := context.Background()

	l.wait(ctx)

	assert.Equal(t, []time.Duration{2 * time.Second}, clock.slept)
}
