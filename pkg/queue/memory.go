package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CreditIntel/pkg/logger"
)

// MemoryQueue is the single-process counterpart of RedisQueue with the same
// Job contract. Messages are lost on restart; failed messages are retried
// with the same backoff up to RetryLimit, then dropped with an error log.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	ch     chan Message

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig, jobs ...Job) *MemoryQueue {
	config = config.withDefaults(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		ch:     make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		q.jobs[job.Type()] = job
	}
	return q
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.running = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("memory queue stopped", logger.Int("dropped", len(q.ch)))
		return nil
	}
}

// Enqueue adds a message; it blocks while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	return q.push(ctx, msg)
}

// PublishMessage publishes a message (implements QueueService).
func (q *MemoryQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

// Pending returns the number of buffered messages.
func (q *MemoryQueue) Pending() int {
	return len(q.ch)
}

func (q *MemoryQueue) push(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return fmt.Errorf("queue stopped")
	}
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case msg := <-q.ch:
			q.process(msg)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	job := q.jobs[msg.Type]

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, ErrDiscard) {
		q.logger.Warn("message discarded", logger.String("id", msg.ID), logger.String("job", job.Name()), logger.Error(err))
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Error(err))
		return
	}

	msg.Attempts++
	q.logger.Warn("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-time.After(q.config.backoff(msg.Attempts)):
			_ = q.push(q.ctx, msg)
		case <-q.ctx.Done():
		}
	}()
}
