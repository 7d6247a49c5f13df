package conn

import (
	"sync"
	"time"
)

// RateLimiter tracks a per-second request counter, trimmed every second,
// and reports whether the sum over the trailing 60 seconds exceeds a
// configured maximum.
type RateLimiter struct {
	mu          sync.Mutex
	maxPerMinute int
	buckets     [60]int
	cursor      int
	lastTick    time.Time
	reportedTick time.Time
}

// NewRateLimiter constructs a limiter bounding the trailing-60s sum to max.
func NewRateLimiter(max int) *RateLimiter {
	return &RateLimiter{maxPerMinute: max, lastTick: time.Now()}
}

// advance rotates the ring buffer forward by however many whole seconds
// have elapsed since the last call, zeroing the buckets that fell out of
// the trailing window.
func (r *RateLimiter) advance(now time.Time) {
	elapsed := int(now.Sub(r.lastTick) / time.Second)
	if elapsed <= 0 {
		return
	}
	if elapsed > len(r.buckets) {
		elapsed = len(r.buckets)
	}
	for i := 0; i < elapsed; i++ {
		r.cursor = (r.cursor + 1) % len(r.buckets)
		r.buckets[r.cursor] = 0
	}
	r.lastTick = now
}

// Allow records one request attempt and reports whether it should be
// acted on (true) or silently dropped (false, because the trailing-60s sum
// already exceeds the limit). reportExceeded is true at most once per
// second even while repeatedly over limit, matching "report once per
// second."
func (r *RateLimiter) Allow(now time.Time) (allowed bool, reportExceeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(now)
	r.buckets[r.cursor]++

	sum := 0
	for _, c := range r.buckets {
		sum += c
	}
	if sum <= r.maxPerMinute {
		return true, false
	}
	if now.Sub(r.reportedTick) >= time.Second {
		r.reportedTick = now
		return false, true
	}
	return false, false
}
