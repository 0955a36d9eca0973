package scoring

import (
	"github.com/shopspring/decimal"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/services/features"
)

// limitBreakdown keeps the intermediate amounts so the explanation can cite them.
type limitBreakdown struct {
	RunRate decimal.Decimal
	Formula decimal.Decimal
	Limit   decimal.Decimal
	Capped  bool
}

// creditLimit applies the ACTIVE formula, or the capped LEARNING variant of it.
func (e *Engine) creditLimit(mode models.Mode, health float64, raw *models.RawSignals) limitBreakdown {
	p := e.policy
	floor := decimal.NewFromFloat(p.MinimumLimit)

	runRate := decimal.NewFromFloat(features.MonthlyRunRate(raw.Current.Revenue, raw.WindowDays))
	formula := runRate.
		Mul(decimal.NewFromFloat(p.LimitMultiplier)).
		Mul(decimal.NewFromFloat(health)).
		Div(decimal.NewFromInt(100))

	out := limitBreakdown{RunRate: runRate.Round(2), Formula: formula.Round(2)}

	if mode == models.ModeActive {
		out.Limit = decimal.Max(floor, e.roundDown(formula))
		return out
	}

	ceiling := decimal.NewFromFloat(p.LearningCeiling)
	learning := e.roundDown(formula.Mul(decimal.NewFromFloat(p.LearningFraction)))
	limit := decimal.Min(ceiling, decimal.Max(floor, learning))
	out.Limit = limit
	out.Capped = limit.Equal(ceiling) && learning.GreaterThan(ceiling)
	return out
}

func (e *Engine) roundDown(v decimal.Decimal) decimal.Decimal {
	if e.policy.RoundTo <= 0 {
		return v.Floor()
	}
	step := decimal.NewFromFloat(e.policy.RoundTo)
	return v.Div(step).Floor().Mul(step)
}

// utilization returns exposure as a percentage of the limit.
func utilization(exposure float64, limit decimal.Decimal) float64 {
	if !limit.IsPositive() {
		return 0
	}
	u, _ := decimal.NewFromFloat(exposure).
		Mul(decimal.NewFromInt(100)).
		Div(limit).
		Round(2).
		Float64()
	return u
}
