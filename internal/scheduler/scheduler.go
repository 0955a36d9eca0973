package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"CreditIntel/internal/domain/models"
	applogger "CreditIntel/pkg/logger"
)

const (
	lockKey       = "recalc:lock"
	ReasonCron    = "scheduled"
	defaultBudget = 30 * time.Minute
)

// ErrAlreadyRunning is returned when another replica holds the sweep lock.
var ErrAlreadyRunning = errors.New("recalculation sweep already running")

type Dispatcher interface {
	Dispatch(ctx context.Context, ids []int64, reason string, wait bool) (models.RecalcReport, error)
}

// Locker is the subset of cache.Service used to keep one sweep per cluster.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler runs the periodic recalculation sweep over all active clients.
type Scheduler struct {
	cron     *cron.Cron
	dispatch Dispatcher
	locker   Locker
	budget   time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	l        *applogger.Logger
}

type Option func(*Scheduler)

// WithLocker guards every sweep with a TTL lock.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithBudget bounds a single sweep; it is also the lock TTL.
func WithBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Scheduler) { s.l = l }
}

func New(dispatch Dispatcher, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		dispatch: dispatch,
		budget:   defaultBudget,
		ctx:      ctx,
		cancel:   cancel,
		l:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s
}

// Register schedules the sweep with a six-field (seconds first) cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register recalculation sweep %q: %w", spec, err)
	}
	s.l.Info("recalculation sweep scheduled", applogger.String("spec", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started")
}

// Stop halts the cron and waits for a running sweep until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next activation time, zero if nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs one sweep immediately.
func (s *Scheduler) RunNow(ctx context.Context) (models.RecalcReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, lockKey, s.budget)
		if err != nil {
			return models.RecalcReport{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return models.RecalcReport{}, ErrAlreadyRunning
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.l.Warn("release sweep lock failed", applogger.Error(err))
			}
		}()
	}

	return s.dispatch.Dispatch(ctx, nil, ReasonCron, false)
}

func (s *Scheduler) tick() {
	report, err := s.RunNow(s.ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.l.Info("recalculation sweep skipped, lock held elsewhere")
	case err != nil:
		s.l.Error("recalculation sweep failed", applogger.Error(err))
	default:
		s.l.Info("recalculation sweep dispatched",
			applogger.Int("requested", report.Requested),
			applogger.Int("dispatched", len(report.Succeeded)),
			applogger.Int("failed", len(report.Failed)),
			applogger.Bool("queued", report.Queued))
	}
}
