package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds the call volume sent to one provider.
type ThrottleConfig struct {
	// Concurrency is the ceiling on in-flight calls.
	Concurrency int
	// RequestsPerSecond limits the call rate; zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// SlowThreshold is the latency above which a call counts as slow. Each
	// slow call lowers the effective concurrency by one, down to one; each
	// call faster than half the threshold restores one. Zero disables it.
	SlowThreshold time.Duration
}

// Throttle is the per-provider concurrency ceiling and rate limiter.
type Throttle struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	max     int64
	slow    time.Duration

	mu     sync.Mutex
	parked int64
}

// NewThrottle creates a throttle. A non-positive concurrency means one.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	max := int64(cfg.Concurrency)
	if max < 1 {
		max = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Throttle{
		sem:     semaphore.NewWeighted(max),
		limiter: rate.NewLimiter(limit, burst),
		max:     max,
		slow:    cfg.SlowThreshold,
	}
}

// Acquire blocks until a call slot and a rate token are available. The
// returned release must be called with the call's latency.
func (t *Throttle) Acquire(ctx context.Context) (release func(elapsed time.Duration), err error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		t.sem.Release(1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The limiter refuses early when the deadline would pass first.
		return nil, fmt.Errorf("rate limited: %w", context.DeadlineExceeded)
	}

	var once sync.Once
	return func(elapsed time.Duration) {
		once.Do(func() {
			t.sem.Release(1)
			t.adjust(elapsed)
		})
	}, nil
}

func (t *Throttle) adjust(elapsed time.Duration) {
	if t.slow <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case elapsed >= t.slow && t.parked < t.max-1:
		// A parked permit is held by the throttle itself.
		if t.sem.TryAcquire(1) {
			t.parked++
		}
	case elapsed < t.slow/2 && t.parked > 0:
		t.sem.Release(1)
		t.parked--
	}
}

// Limit returns the current effective concurrency ceiling.
func (t *Throttle) Limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.max - t.parked)
}
