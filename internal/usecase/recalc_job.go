package usecase

import (
	"context"
	"errors"
	"fmt"

	"CreditIntel/internal/domain/models"
	"CreditIntel/pkg/queue"
)

// RecalcJobType is the queue message type for one client recalculation.
const RecalcJobType = "credit.recalculate"

// RecalcJob handles queued recalculations. Errors that a retry cannot fix are
// marked with queue.ErrDiscard.
type RecalcJob struct {
	calc Calculator
}

func NewRecalcJob(calc Calculator) *RecalcJob {
	return &RecalcJob{calc: calc}
}

func (j *RecalcJob) Name() string { return "credit-recalculate" }
func (j *RecalcJob) Type() string { return RecalcJobType }

func (j *RecalcJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[models.RecalcJob](payload)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrDiscard, err)
	}
	if p.ClientID <= 0 {
		return fmt.Errorf("%w: invalid client id %d", queue.ErrDiscard, p.ClientID)
	}

	_, err = j.calc.Calculate(ctx, p.ClientID, nil)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		return fmt.Errorf("%w: client %d: %v", queue.ErrDiscard, p.ClientID, err)
	}
	return err
}

// isPermanent reports errors that recalculating again cannot fix.
func isPermanent(err error) bool {
	var incomplete *models.IncompleteSignalDataError
	return errors.Is(err, models.ErrClientNotFound) ||
		errors.As(err, &incomplete) ||
		models.IsWeightError(err)
}

var _ queue.Job = (*RecalcJob)(nil)
