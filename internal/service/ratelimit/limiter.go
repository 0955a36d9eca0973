package ratelimit

import (
	"sync"
	"time"
)

// maxKeys bounds the bucket map; past it, refilled buckets are swept on insert.
const maxKeys = 10000

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key gets capacity tokens that refill
// at refillPerSec.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	refill   float64
	now      func() time.Time
}

func New(capacity int, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		m:        make(map[string]*bucket),
		capacity: float64(capacity),
		refill:   refillPerSec,
		now:      time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.m[key]
	if !ok {
		if len(l.m) >= maxKeys {
			l.sweepLocked(now)
		}
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	l.refillLocked(b, now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Sweep drops buckets that have refilled completely; they are
// indistinguishable from fresh ones. It returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) refillLocked(b *bucket, now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * l.refill
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now
}

func (l *Limiter) sweepLocked(now time.Time) int {
	n := 0
	for key, b := range l.m {
		l.refillLocked(b, now)
		if b.tokens >= l.capacity {
			delete(l.m, key)
			n++
		}
	}
	return n
}
