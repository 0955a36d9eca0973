package usecase

import (
	"context"
	"time"

	"CreditIntel/internal/domain/models"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/queue"
)

// RecalcDispatcher turns a recalculation request into queued per-client jobs,
// or runs it inline when the caller wants the report.
type RecalcDispatcher struct {
	queue queue.QueueService
	batch *BatchRecalculator
	l     *applogger.Logger
}

func NewRecalcDispatcher(q queue.QueueService, batch *BatchRecalculator) *RecalcDispatcher {
	return &RecalcDispatcher{queue: q, batch: batch, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (d *RecalcDispatcher) SetLogger(l *applogger.Logger) { d.l = l }

// Dispatch recalculates ids, or every active client when ids is empty.
// With wait (or without a queue) the batch runs inline and the report lists
// outcomes; otherwise jobs are enqueued and Failed holds ids that could not be queued.
func (d *RecalcDispatcher) Dispatch(ctx context.Context, ids []int64, reason string, wait bool) (models.RecalcReport, error) {
	if wait || d.queue == nil {
		return d.batch.Run(ctx, ids)
	}

	start := time.Now()
	report := models.RecalcReport{StartedAt: start.UTC(), Queued: true, Succeeded: []int64{}, Failed: []int64{}}
	clients, err := d.batch.ResolveClients(ctx, ids)
	if err != nil {
		return report, err
	}
	report.Requested = len(clients)

	for _, id := range clients {
		err := d.queue.PublishMessage(ctx, RecalcJobType, models.RecalcJob{ClientID: id, Reason: reason})
		if err != nil {
			d.l.Warn("enqueue recalculation failed", applogger.ClientID(id), applogger.Error(err))
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
	}
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	d.l.Info("recalculation queued",
		applogger.String("reason", reason),
		applogger.Int("queued", len(report.Succeeded)),
		applogger.Int("failed", len(report.Failed)))
	return report, nil
}
