package samplingoverlay

import (
	"math"
	"sync"
	"time"
)

// tokenBucket is a single system's token bucket. Grounded on
// pkg/ratelimit.AdaptiveRateLimiter's refill arithmetic, stripped of its
// background adaptation goroutine: spec §5 forbids internal threads,
// queues, or timers, and deterministic per-process admission (§4.7 "ties
// broken toward admit") only needs Allow called synchronously from the
// extraction hot path.
type tokenBucket struct {
	mu         sync.Mutex
	rps        float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(rps float64, now func() time.Time) *tokenBucket {
	if rps <= 0 {
		rps = 1
	}
	burst := math.Max(rps, 1)
	return &tokenBucket{
		rps:        rps,
		burst:      burst,
		tokens:     burst,
		lastRefill: now(),
		now:        now,
	}
}

// allow reports whether one unit of the named system's rate budget is
// available right now, refilling proportionally to elapsed time since the
// last call. Ties (tokens exactly at the admission threshold) resolve to
// admit, per spec §4.7.
func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens = math.Min(b.tokens+elapsed*b.rps, b.burst)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// rateLimiterSet is a per-system registry of token buckets, keyed by system
// name and lazily created on first observed `tps`. Safe for concurrent use;
// §5 requires rate-limiter counters to be "updated under their own
// fine-grained synchronization" rather than a single global lock.
type rateLimiterSet struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

func newRateLimiterSet(now func() time.Time) *rateLimiterSet {
	if now == nil {
		now = time.Now
	}
	return &rateLimiterSet{buckets: make(map[string]*tokenBucket), now: now}
}

// allow admits or rejects one unit of the named system's budget at the
// given rate (requests per second). The bucket is created on first use and
// reused thereafter; a later call with a different rate simply adjusts the
// existing bucket's rate, it does not reset accrued tokens.
func (s *rateLimiterSet) allow(systemName string, rps int) bool {
	s.mu.Lock()
	b, ok := s.buckets[systemName]
	if !ok {
		b = newTokenBucket(float64(rps), s.now)
		s.buckets[systemName] = b
	}
	s.mu.Unlock()

	b.mu.Lock()
	b.rps = float64(rps)
	b.burst = math.Max(b.burst, float64(rps))
	b.mu.Unlock()

	return b.allow()
}
