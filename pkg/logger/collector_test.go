package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return nil
}

func TestLogCollectorDeduplicatesAndFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	done := pub.done
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "credit.logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "store failed", map[string]interface{}{"client_id": 1}, "a.go:1")
	c.AddLog("error", "store failed", map[string]interface{}{"client_id": 1}, "a.go:1")
	assert.Equal(t, 1, c.Pending())

	c.AddLog("error", "publish failed", nil, "b.go:2")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a flush")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "credit.logs", pub.topics[0])
	require.Len(t, pub.batches[0], 2)
	assert.Equal(t, 2, pub.batches[0][0].Count)
	assert.Equal(t, "store failed", pub.batches[0][0].Message)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100})
	defer l.RemoveCollector()

	l.Error("calculation failed", ClientID(7), Error(assert.AnError))
	l.Warn("ignored without CollectWarn")

	assert.Equal(t, 1, l.collector.Pending())
}
