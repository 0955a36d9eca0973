package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(capacity int, refill float64) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(capacity, refill)
	l.now = clk.now
	return l, clk
}

func TestAllowConsumesAndRefills(t *testing.T) {
	l, clk := newTestLimiter(2, 1)

	assert.True(t, l.Allow("10.0.0.1:calculate"))
	assert.True(t, l.Allow("10.0.0.1:calculate"))
	assert.False(t, l.Allow("10.0.0.1:calculate"))
	assert.True(t, l.Allow("10.0.0.2:calculate"))

	clk.t = clk.t.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1:calculate"))
	assert.False(t, l.Allow("10.0.0.1:calculate"))
}

func TestRefillIsCappedAtCapacity(t *testing.T) {
	l, clk := newTestLimiter(2, 10)

	assert.True(t, l.Allow("k"))
	clk.t = clk.t.Add(time.Hour)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestSweepDropsRefilledBuckets(t *testing.T) {
	l, clk := newTestLimiter(3, 1)

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.Sweep())

	clk.t = clk.t.Add(2 * time.Second)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 0, l.Len())
}
