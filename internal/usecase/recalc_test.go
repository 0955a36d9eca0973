package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
	pkgkafka "CreditIntel/pkg/kafka"
	"CreditIntel/pkg/queue"
)

type staticLister []int64

func (s staticLister) ListActiveClientIDs(context.Context, time.Time) ([]int64, error) {
	return s, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []models.RecalcJob
	fail map[int64]bool
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msgType != RecalcJobType {
		return fmt.Errorf("unexpected type %s", msgType)
	}
	job := payload.(models.RecalcJob)
	if q.fail[job.ClientID] {
		return errors.New("queue full")
	}
	q.msgs = append(q.msgs, job)
	return nil
}

func TestBatchRun_Report(t *testing.T) {
	calc := &fakeCalculator{errs: map[int64]error{
		3: fmt.Errorf("client 3: %w", models.ErrClientNotFound),
		4: errors.New("erp timeout"),
	}}
	b := NewBatchRecalculator(calc, nil, 3, 0)

	report, err := b.Run(context.Background(), []int64{5, 1, 3, 4, 1, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Requested)
	assert.Equal(t, []int64{1, 2, 5}, report.Succeeded)
	assert.Equal(t, []int64{4}, report.Failed)
	assert.Equal(t, []int64{3}, report.Skipped)
	assert.False(t, report.Queued)
	assert.NotEmpty(t, report.Duration)
	assert.Len(t, calc.calls, 5)
}

func TestBatchRun_UsesListerWhenNoIDs(t *testing.T) {
	calc := &fakeCalculator{}
	b := NewBatchRecalculator(calc, staticLister{7, 8, 7}, 2, 0)

	report, err := b.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, report.Succeeded)
}

func TestBatchRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBatchRecalculator(&fakeCalculator{}, nil, 1, 0)

	_, err := b.Run(ctx, []int64{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatch_Enqueues(t *testing.T) {
	q := &recordingQueue{fail: map[int64]bool{2: true}}
	calc := &fakeCalculator{}
	d := NewRecalcDispatcher(q, NewBatchRecalculator(calc, nil, 2, 0))

	report, err := d.Dispatch(context.Background(), []int64{1, 2, 3}, "manual", false)
	require.NoError(t, err)
	assert.True(t, report.Queued)
	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, []int64{1, 3}, report.Succeeded)
	assert.Equal(t, []int64{2}, report.Failed)
	require.Len(t, q.msgs, 2)
	assert.Equal(t, "manual", q.msgs[0].Reason)
	assert.Empty(t, calc.calls)
}

func TestDispatch_WaitRunsInline(t *testing.T) {
	q := &recordingQueue{}
	calc := &fakeCalculator{}
	d := NewRecalcDispatcher(q, NewBatchRecalculator(calc, nil, 2, 0))

	report, err := d.Dispatch(context.Background(), []int64{1, 2}, "manual", true)
	require.NoError(t, err)
	assert.False(t, report.Queued)
	assert.Equal(t, []int64{1, 2}, report.Succeeded)
	assert.Empty(t, q.msgs)
}

func TestRecalcJob_Handle(t *testing.T) {
	calc := &fakeCalculator{errs: map[int64]error{
		2: fmt.Errorf("client 2: %w", models.ErrClientNotFound),
		3: &models.IncompleteSignalDataError{Field: "current.aging"},
		4: errors.New("erp timeout"),
	}}
	job := NewRecalcJob(calc)
	ctx := context.Background()

	assert.NoError(t, job.Handle(ctx, models.RecalcJob{ClientID: 1}))
	assert.ErrorIs(t, job.Handle(ctx, models.RecalcJob{ClientID: 2}), queue.ErrDiscard)
	assert.ErrorIs(t, job.Handle(ctx, models.RecalcJob{ClientID: 3}), queue.ErrDiscard)

	err := job.Handle(ctx, models.RecalcJob{ClientID: 4})
	require.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrDiscard)

	assert.ErrorIs(t, job.Handle(ctx, models.RecalcJob{}), queue.ErrDiscard)
	assert.ErrorIs(t, job.Handle(ctx, "garbage"), queue.ErrDiscard)
}

func TestKafkaActivityHandler(t *testing.T) {
	calc := &fakeCalculator{errs: map[int64]error{
		2: fmt.Errorf("client 2: %w", models.ErrClientNotFound),
		3: &models.IncompleteSignalDataError{Field: "baseline"},
		4: errors.New("erp timeout"),
	}}
	metrics := newCountingMetrics()
	h := NewKafkaActivityHandler("erp.client-activity", calc, metrics)
	ctx := context.Background()

	assert.Equal(t, "erp.client-activity", h.Topic())
	assert.NoError(t, h.Handle(ctx, []byte(`{"type":"order.created","clientId":1}`)))
	assert.NoError(t, h.Handle(ctx, []byte(`{"type":"client.renamed","clientId":1}`)))
	assert.NoError(t, h.Handle(ctx, []byte(`{"type":"payment.received","clientId":2}`)))

	err := h.Handle(ctx, []byte(`{"type":"invoice.updated","clientId":3}`))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))

	err = h.Handle(ctx, []byte(`{"type":"invoice.updated","clientId":4}`))
	require.Error(t, err)
	assert.False(t, pkgkafka.IsPermanent(err))

	err = h.Handle(ctx, []byte(`{`))
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, metrics.errors["consumer_unmarshal"])

	assert.Equal(t, []int64{1, 2, 3, 4}, calc.calls)
}
