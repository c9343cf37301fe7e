// Package ratelimit implements the per-requester bulk/CIDR rate limit of
// spec.md §4.5: a sliding 60s window of up to BULK_RATE_LIMIT_IPS_PER_MINUTE
// IPs per requester IP, with a periodic sweep of stale entries so the map
// doesn't grow without bound. Grounded on golang.org/x/time/rate (wired
// per SPEC_FULL's domain-stack table) token-bucket semantics, which
// approximate the spec's sliding window closely enough for an IPs/minute
// budget: burst=limit, refill=limit/60s.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/itsneelabh/gomind/core"
)

// Limiter is the per-requester-IP rate limit store. The design note in
// spec.md §5 calls this out explicitly as mutable shared state guarded by
// a lock with a non-blocking periodic sweep.
type Limiter struct {
	mu           sync.Mutex
	perRequester map[string]*entry
	limit        int
	logger       core.Logger
	stopSweep    chan struct{}
}

type entry struct {
	limiter    *rate.Limiter
	lastSeenAt time.Time
}

// New builds a Limiter allowing ipsPerMinute IPs/minute per requester, and
// starts its background sweep goroutine (stop via Close).
func New(ipsPerMinute int, logger core.Logger) *Limiter {
	if ipsPerMinute < 1 {
		ipsPerMinute = 500
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	l := &Limiter{
		perRequester: make(map[string]*entry),
		limit:        ipsPerMinute,
		logger:       logger,
		stopSweep:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// AllowN reports whether requester may consume n IPs worth of quota right
// now (n > 1 for bulk/CIDR requests). On rejection the caller should
// respond 429 with a Retry-After derived from RetryAfter.
func (l *Limiter) AllowN(requester string, n int) bool {
	l.mu.Lock()
	e, ok := l.perRequester[requester]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(l.limit)/60.0), l.limit)}
		l.perRequester[requester] = e
	}
	e.lastSeenAt = time.Now()
	lim := e.limiter
	l.mu.Unlock()

	return lim.AllowN(time.Now(), n)
}

// RetryAfter returns a conservative Retry-After duration for a rejected
// requester: enough time for one token to refill.
func (l *Limiter) RetryAfter(requester string) time.Duration {
	secondsPerToken := 60.0 / float64(l.limit)
	return time.Duration(secondsPerToken*1000) * time.Millisecond
}

// sweepLoop removes requesters idle for more than two windows, so the map
// doesn't grow without bound across the process lifetime - the "periodic
// sweep removes expired windows without blocking the critical path"
// requirement of spec.md §5.
func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopSweep:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for requester, e := range l.perRequester {
		if now.Sub(e.lastSeenAt) > 2*time.Minute {
			delete(l.perRequester, requester)
		}
	}
}

// Close stops the sweep goroutine.
func (l *Limiter) Close() {
	close(l.stopSweep)
}
