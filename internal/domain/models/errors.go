package models

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrSnapshotNotFound = errors.New("credit snapshot not found")
	ErrSettingsNotFound = errors.New("credit settings not found")
)

// WeightSumError is returned when weights do not add up to 100.
type WeightSumError struct {
	Sum float64
}

func (e *WeightSumError) Error() string {
	return fmt.Sprintf("weights sum to %.4f, must sum to %.0f (±%.2f)", e.Sum, WeightSumTarget, WeightSumTolerance)
}

// InvalidWeightsError is returned when a single weight is negative or not a finite number.
type InvalidWeightsError struct {
	Signal SignalName
	Value  float64
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid weight for %s: %v", e.Signal, e.Value)
}

// IncompleteSignalDataError is returned when the collector hands over structurally incomplete input.
type IncompleteSignalDataError struct {
	Field  string
	Reason string
}

func (e *IncompleteSignalDataError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("incomplete signal data: %s", e.Field)
	}
	return fmt.Sprintf("incomplete signal data: %s: %s", e.Field, e.Reason)
}

// IsWeightError reports whether err came from weight validation.
func IsWeightError(err error) bool {
	var sumErr *WeightSumError
	var invErr *InvalidWeightsError
	return errors.As(err, &sumErr) || errors.As(err, &invErr)
}
