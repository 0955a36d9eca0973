package api

import (
	"context"
	"errors"
	"net/http"

	"CreditIntel/internal/domain/models"
	xhttp "CreditIntel/pkg/http"
)

// toAppError maps domain errors onto the transport error envelope.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr     *xhttp.AppError
		sumErr     *models.WeightSumError
		invErr     *models.InvalidWeightsError
		incomplete *models.IncompleteSignalDataError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &sumErr):
		return xhttp.NewAppError("ERR_WEIGHT_SUM", "weights", sumErr.Error(), http.StatusBadRequest).
			WithParam("sum", sumErr.Sum).
			WithParam("target", models.WeightSumTarget).
			WithError(err)
	case errors.As(err, &invErr):
		return xhttp.NewAppError("ERR_INVALID_WEIGHTS", "weights."+string(invErr.Signal), invErr.Error(), http.StatusBadRequest).
			WithError(err)
	case errors.As(err, &incomplete):
		return xhttp.UnprocessableError("ERR_INCOMPLETE_SIGNAL_DATA", incomplete.Field, incomplete.Error()).
			WithError(err)
	case errors.Is(err, models.ErrClientNotFound):
		return xhttp.NotFoundError("ERR_CLIENT_NOT_FOUND", "clientId", "client not found").
			WithError(err)
	case errors.Is(err, models.ErrSnapshotNotFound):
		return xhttp.NotFoundError("ERR_SNAPSHOT_NOT_FOUND", "clientId", "no credit snapshot for client").
			WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("calculation timed out").
			WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
