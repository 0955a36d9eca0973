package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	applogger "CreditIntel/pkg/logger"
)

// Calculator is the part of CreditLimitService the background paths need.
type Calculator interface {
	Calculate(ctx context.Context, clientID int64, custom *models.SignalWeights) (models.CreditResult, error)
}

// BatchRecalculator recalculates many clients with a bounded worker pool.
type BatchRecalculator struct {
	calc        Calculator
	lister      domrepo.ClientLister
	workers     int
	activeSince time.Duration
	now         func() time.Time
	l           *applogger.Logger
}

func NewBatchRecalculator(calc Calculator, lister domrepo.ClientLister, workers int, activeSince time.Duration) *BatchRecalculator {
	if workers <= 0 {
		workers = 4
	}
	if activeSince <= 0 {
		activeSince = 90 * 24 * time.Hour
	}
	return &BatchRecalculator{
		calc:        calc,
		lister:      lister,
		workers:     workers,
		activeSince: activeSince,
		now:         time.Now,
		l:           applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (b *BatchRecalculator) SetLogger(l *applogger.Logger) { b.l = l }

// ResolveClients returns the deduplicated ids, or every recently active client when ids is empty.
func (b *BatchRecalculator) ResolveClients(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) > 0 {
		return dedupeIDs(ids), nil
	}
	if b.lister == nil {
		return nil, nil
	}
	active, err := b.lister.ListActiveClientIDs(ctx, b.now().Add(-b.activeSince))
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	return dedupeIDs(active), nil
}

// Run recalculates ids (or all active clients) and reports per-client outcomes.
// Unknown clients are reported as skipped. Run fails when the client list cannot
// be resolved, or with ctx.Err() alongside the partial report when ctx is done.
func (b *BatchRecalculator) Run(ctx context.Context, ids []int64) (models.RecalcReport, error) {
	start := b.now()
	report := models.RecalcReport{StartedAt: start.UTC(), Succeeded: []int64{}, Failed: []int64{}}

	clients, err := b.ResolveClients(ctx, ids)
	if err != nil {
		return report, err
	}
	report.Requested = len(clients)

	jobs := make(chan int64)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < min(b.workers, max(1, len(clients))); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_, err := b.calc.Calculate(ctx, id, nil)
				mu.Lock()
				switch {
				case err == nil:
					report.Succeeded = append(report.Succeeded, id)
				case errors.Is(err, models.ErrClientNotFound):
					report.Skipped = append(report.Skipped, id)
				default:
					report.Failed = append(report.Failed, id)
					b.l.Warn("recalculation failed", applogger.ClientID(id), applogger.Error(err))
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, id := range clients {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	slices.Sort(report.Succeeded)
	slices.Sort(report.Failed)
	slices.Sort(report.Skipped)
	elapsed := b.now().Sub(start)
	report.Duration = elapsed.Round(time.Millisecond).String()

	b.l.Info("batch recalculation finished",
		applogger.Int("requested", report.Requested),
		applogger.Int("succeeded", len(report.Succeeded)),
		applogger.Int("failed", len(report.Failed)),
		applogger.Duration("took", elapsed))
	return report, ctx.Err()
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
