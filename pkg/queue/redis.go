package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"CreditIntel/pkg/logger"
)

const (
	popTimeout    = time.Second
	retryInterval = time.Second
	deadLetterCap = 10000
)

// RedisQueue is a list-backed queue shared by every replica: producers LPUSH,
// workers BRPOP. Failed messages wait in a sorted set scored by their retry
// time and land in a capped dead-letter list once RetryLimit is spent.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	keyPrefix string

	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces the queue keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	config = config.withDefaults(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "queue",
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob routes messages of job.Type() to job. Register before Start.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.promoteRetries()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels in-flight handlers and waits for workers. Messages still in
// Redis survive for the next start.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

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
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.key("messages"), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage publishes a message (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		msg, ok := r.pop()
		if ok {
			r.process(msg)
		}
	}
	r.logger.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) pop() (Message, bool) {
	res, err := r.client.BRPop(r.ctx, popTimeout, r.key("messages")).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), r.ctx.Err() != nil:
		return Message{}, false
	default:
		r.logger.Error("brpop failed", logger.Error(err))
		select {
		case <-time.After(popTimeout):
		case <-r.ctx.Done():
		}
		return Message{}, false
	}

	var msg Message
	if len(res) < 2 {
		return msg, false
	}
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return msg, false
	}
	return msg, true
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, exists := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !exists {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	err := job.Handle(r.ctx, msg.Payload)
	switch {
	case err == nil:
	case errors.Is(err, ErrDiscard):
		r.logger.Warn("message discarded",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Error(err))
	case errors.Is(err, context.Canceled):
		// Shutdown interrupted the job; put it back untouched.
		r.requeue(msg)
	default:
		r.fail(msg, job, err)
	}
}

func (r *RedisQueue) fail(msg Message, job Job, err error) {
	msg.LastError = err.Error()
	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Error(err))
		r.deadLetter(msg)
		return
	}

	msg.Attempts++
	at := time.Now().Add(r.config.backoff(msg.Attempts))
	r.logger.Warn("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", at.Format(time.RFC3339)),
		logger.Error(err))

	data, mErr := json.Marshal(msg)
	if mErr != nil {
		r.logger.Error("marshal retry", logger.Error(mErr))
		return
	}
	// The job context may already be cancelled; the retry must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if zErr := r.client.ZAdd(ctx, r.key("retry"), redis.Z{Score: float64(at.UnixMilli()), Member: data}).Err(); zErr != nil {
		r.logger.Error("zadd retry", logger.Error(zErr))
	}
}

func (r *RedisQueue) requeue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.RPush(ctx, r.key("messages"), data).Err(); err != nil {
		r.logger.Error("requeue", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key("dlq"), data)
	pipe.LTrim(ctx, r.key("dlq"), 0, deadLetterCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

// promoteRetries moves due retries back onto the main list. ZREM decides
// which replica owns a message, so each retry is requeued once.
func (r *RedisQueue) promoteRetries() {
	defer r.wg.Done()
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue(time.Now())
		}
	}
}

func (r *RedisQueue) promoteDue(now time.Time) {
	due, err := r.client.ZRangeByScore(r.ctx, r.key("retry"), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, data := range due {
		removed, err := r.client.ZRem(r.ctx, r.key("retry"), data).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.key("messages"), data).Err(); err != nil {
			r.logger.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (r *RedisQueue) key(name string) string {
	return r.keyPrefix + ":" + name
}
