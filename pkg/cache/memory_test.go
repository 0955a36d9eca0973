package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weights struct {
	Revenue float64 `json:"revenue"`
	Tenure  float64 `json:"tenure"`
}

func TestMemoryCacheRoundTripsTypedValues(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "settings", weights{Revenue: 20, Tenure: 10}, time.Minute))

	var got weights
	require.NoError(t, mc.Get(ctx, "settings", &got))
	assert.Equal(t, weights{Revenue: 20, Tenure: 10}, got)

	require.NoError(t, mc.Set(ctx, "raw", "text", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "text", s)
}

func TestMemoryCacheExpiryAndMiss(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v int
	err := mc.Get(ctx, "k", &v)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "recalc:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "recalc:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "recalc:7"))
	ok, err = mc.TryLock(ctx, "recalc:7", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	ok, err = mc.TryLock(ctx, "recalc:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is reclaimable")
}
