package scoring

import (
	"math"

	"CreditIntel/internal/domain/models"
)

// ValidateWeights accepts a weight set only if every weight is a finite non-negative
// number and the total is 100 within tolerance. Weights are returned untouched.
func ValidateWeights(w models.SignalWeights) (models.SignalWeights, error) {
	for _, name := range models.SignalNames {
		v := w.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return models.SignalWeights{}, &models.InvalidWeightsError{Signal: name, Value: v}
		}
	}
	sum := w.Sum()
	if math.Abs(sum-models.WeightSumTarget) > models.WeightSumTolerance {
		return models.SignalWeights{}, &models.WeightSumError{Sum: sum}
	}
	return w, nil
}
