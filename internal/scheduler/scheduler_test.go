package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
	"CreditIntel/pkg/cache"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	reasons []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ids []int64, reason string, wait bool) (models.RecalcReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return models.RecalcReport{Requested: 2, Succeeded: []int64{1, 2}, Failed: []int64{}, Queued: !wait}, nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reasons)
}

func TestRunNowDispatchesQueuedSweep(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Queued)
	assert.Equal(t, []string{ReasonCron}, d.reasons)
}

func TestRunNowHonoursLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	d := &recordingDispatcher{}
	s := New(d, WithLocker(mc), WithBudget(time.Minute))

	ok, err := mc.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, 0, d.count())

	require.NoError(t, mc.Unlock(context.Background(), lockKey))
	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.count())

	ok, err = mc.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "sweep releases its lock")
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(&recordingDispatcher{})
	assert.Error(t, s.Register("every night"))
	assert.True(t, s.Next().IsZero())
}

func TestCronFiresSweep(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d)
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	assert.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return d.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
