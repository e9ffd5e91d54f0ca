package router

import (
	"sync"
	"time"
)

// breaker is a per-tenant circuit breaker around pool creation.
// Consecutive creation failures open it; after the cooldown a single
// probe attempt is let through (half-open) and its outcome decides
// whether the breaker closes again.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures int
	openedAt time.Time
	probing  bool
}

const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half-open"
)

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// allow reports whether a creation attempt may proceed. In the open
// state it returns false until the cooldown elapses, then lets exactly
// one probe through until that probe resolves.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.probing {
		return false
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}

// cancelProbe releases an in-flight probe without counting it as
// either outcome. Used when an attempt is stopped by a tenant-state
// gate before any connection work happens, so the next post-cooldown
// caller still gets a probe.
func (b *breaker) cancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probing = false
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

func (b *breaker) state() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return breakerClosed
	}
	if b.probing || b.now().Sub(b.openedAt) >= b.cooldown {
		return breakerHalfOpen
	}
	return breakerOpen
}

func (b *breaker) consecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
