package scoring

import (
	"fmt"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/domain/service"
	"CreditIntel/internal/services/features"
)

// Engine is the pure scoring function. It holds only its immutable policy and
// is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine builds an engine from the default policy adjusted by opts.
func NewEngine(opts ...Option) (*Engine, error) {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}
	return &Engine{policy: p}, nil
}

// ValidateWeights implements service.WeightValidator.
func (e *Engine) ValidateWeights(w models.SignalWeights) (models.SignalWeights, error) {
	return ValidateWeights(w)
}

// Score validates inputs and produces the full credit result.
func (e *Engine) Score(raw *models.RawSignals, weights models.SignalWeights, th models.LearningThresholds) (models.CreditResult, error) {
	w, err := ValidateWeights(weights)
	if err != nil {
		return models.CreditResult{}, err
	}
	if err := raw.Validate(); err != nil {
		return models.CreditResult{}, err
	}

	current := e.periodScores(raw.Current, raw.Previous)
	previous := e.periodScores(raw.Previous, raw.Baseline)

	signals := make(models.ScoredSignals, len(models.SignalNames))
	trends := make(models.SignalTrends, len(models.TrendedSignals))
	for _, n := range models.TrendedSignals {
		signals[n] = models.Round2(current[n])
		trends[n] = e.trend(current[n], previous[n])
	}
	signals[models.SignalTenure] = models.Round2(e.tenure(raw.TenureDays))

	var composite float64
	for _, n := range models.SignalNames {
		composite += signals[n] * w.Get(n) / 100
	}
	composite = models.Round2(features.Clamp(composite, 0, 100))

	readiness := dataReadiness(raw, th)
	mode := models.ModeActive
	if readiness < 100 || raw.Current.Revenue <= 0 {
		mode = models.ModeLearning
	}

	lb := e.creditLimit(mode, composite, raw)
	limit, _ := lb.Limit.Float64()

	res := models.CreditResult{
		ClientID:           raw.ClientID,
		CreditHealthScore:  composite,
		CreditLimit:        limit,
		CurrentExposure:    models.Round2(raw.CurrentExposure),
		UtilizationPercent: utilization(raw.CurrentExposure, lb.Limit),
		Mode:               mode,
		DataReadiness:      models.Round2(readiness),
		Trend:              overallTrend(trends, w),
		Signals:            signals,
		SignalTrends:       trends,
		AsOf:               raw.AsOf.UTC(),
	}
	res.Explanation = e.explain(res, w, th, raw.WindowDays, lb)
	return res, nil
}

func (e *Engine) trend(cur, prev float64) models.Trend {
	delta := cur - prev
	switch {
	case delta > e.policy.TrendThreshold:
		return models.TrendImproving
	case delta < -e.policy.TrendThreshold:
		return models.TrendWorsening
	default:
		return models.TrendStable
	}
}

// overallTrend nets the weight of improving signals against worsening ones.
func overallTrend(trends models.SignalTrends, w models.SignalWeights) models.Trend {
	var net float64
	for _, n := range models.TrendedSignals {
		switch trends[n] {
		case models.TrendImproving:
			net += w.Get(n)
		case models.TrendWorsening:
			net -= w.Get(n)
		}
	}
	switch {
	case net > 0:
		return models.TrendImproving
	case net < 0:
		return models.TrendWorsening
	default:
		return models.TrendStable
	}
}

// dataReadiness is the mean of three capped sufficiency ratios, as a percentage.
func dataReadiness(raw *models.RawSignals, th models.LearningThresholds) float64 {
	ratio := func(have, need int) float64 {
		if need <= 0 {
			return 1
		}
		return features.Clamp(float64(have)/float64(need), 0, 1)
	}
	sum := ratio(raw.LifetimeOrders, th.MinOrders) +
		ratio(raw.TenureDays, th.MinTenureDays) +
		ratio(raw.Current.OrderCount, th.MinRecentOrders)
	return 100 * sum / 3
}

var (
	_ service.CreditScorer    = (*Engine)(nil)
	_ service.WeightValidator = (*Engine)(nil)
)
