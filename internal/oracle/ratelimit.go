package oracle

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a sliding 60-second window of at most max requests,
// plus an unconditional delay after each clearance. The window semantics
// match the upstream provider's per-minute accounting, which a token bucket
// does not reproduce.
type rateLimiter struct {
	mu     sync.Mutex
	max    int
	delay  time.Duration
	window time.Duration
	stamps []time.Time

	// injected for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

func newRateLimiter(maxPerMinute int, delay time.Duration) *rateLimiter {
	return &rateLimiter{
		max:    maxPerMinute,
		delay:  delay,
		window: time.Minute,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// wait blocks until the caller is cleared to send one request. The window
// is rechecked after every wake-up: several workers woken together must
// still claim slots one at a time.
func (l *rateLimiter) wait(ctx context.Context) {
	for {
		l.mu.Lock()
		now := l.now()

		// Drop timestamps that left the window.
		kept := l.stamps[:0]
		for _, ts := range l.stamps {
			if now.Sub(ts) < l.window {
				kept = append(kept, ts)
			}
		}
		l.stamps = kept

		if l.max <= 0 || len(l.stamps) < l.max {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			break
		}
		pause := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		l.sleep(ctx, pause)
	}

	if l.delay > 0 {
		l.sleep(ctx, l.delay)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
