package service

import "CreditIntel/internal/domain/models"

// CreditScorer turns raw client signals and a weight set into a credit result.
// Implementations must be pure: identical inputs give identical results.
type CreditScorer interface {
	Score(raw *models.RawSignals, weights models.SignalWeights, thresholds models.LearningThresholds) (models.CreditResult, error)
}

// WeightValidator checks a weight set before it is used or stored.
type WeightValidator interface {
	ValidateWeights(w models.SignalWeights) (models.SignalWeights, error)
}
