package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/pkg/logger"
)

type recalcPayload struct {
	ClientID int64 `json:"clientId"`
}

type countingJob struct {
	calls   atomic.Int32
	failFor int32
	discard bool
	seen    chan int64
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "test.recalc" }

func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	p, err := ParsePayload[recalcPayload](payload)
	if err != nil {
		return err
	}
	if j.discard {
		return fmt.Errorf("client %d: %w", p.ClientID, ErrDiscard)
	}
	if n <= j.failFor {
		return fmt.Errorf("transient")
	}
	j.seen <- p.ClientID
	return nil
}

func startQueue(t *testing.T, job Job, retryLimit int) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2, RetryLimit: retryLimit, RetryDelay: time.Millisecond}, job)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func TestMemoryQueueDeliversAndRetries(t *testing.T) {
	job := &countingJob{failFor: 2, seen: make(chan int64, 1)}
	q := startQueue(t, job, 3)

	require.NoError(t, q.PublishMessage(context.Background(), "test.recalc", recalcPayload{ClientID: 42}))

	select {
	case id := <-job.seen:
		assert.Equal(t, int64(42), id)
	case <-time.After(2 * time.Second):
		t.Fatal("job not delivered")
	}
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestMemoryQueueDiscardSkipsRetry(t *testing.T) {
	job := &countingJob{discard: true, seen: make(chan int64, 1)}
	q := startQueue(t, job, 5)

	require.NoError(t, q.Enqueue(context.Background(), "test.recalc", recalcPayload{ClientID: 1}))
	assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestMemoryQueueRejectsUnknownType(t *testing.T) {
	q := startQueue(t, &countingJob{seen: make(chan int64, 1)}, 0)
	err := q.Enqueue(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"clientId":9}`)
	p, err := ParsePayload[recalcPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ClientID)

	p, err = ParsePayload[recalcPayload](map[string]interface{}{"clientId": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ClientID)

	_, err = ParsePayload[recalcPayload](42)
	assert.Error(t, err)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cfg := (&QueueConfig{RetryDelay: time.Second}).withDefaults(time.Minute)
	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 4*time.Second, cfg.backoff(3))
	assert.Equal(t, 32*time.Second, cfg.backoff(10))

	def := (*QueueConfig)(nil).withDefaults(time.Minute)
	assert.Equal(t, 1, def.Workers)
	assert.Equal(t, time.Minute, def.RetryDelay)
}
