package scoring

import (
	"math"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/services/features"
)

// descending maps x linearly so that best scores 100 and worst scores 0.
func descending(x, best, worst float64) float64 {
	return features.Clamp(100*(worst-x)/(worst-best), 0, 100)
}

// ascending maps x linearly so that lo scores 0 and hi scores 100.
func ascending(x, lo, hi float64) float64 {
	return features.Clamp(100*(x-lo)/(hi-lo), 0, 100)
}

func (e *Engine) revenueMomentum(cur, prev *models.PeriodSignals) float64 {
	g := features.RevenueGrowth(cur.Revenue, prev.Revenue)
	return features.Clamp(50+50*math.Tanh(g/e.policy.GrowthScale), 0, 100)
}

func (e *Engine) cashCollection(p *models.PeriodSignals) float64 {
	avg, ok := features.AvgDaysToPay(p.Payments)
	if !ok {
		return e.policy.NeutralScore
	}
	return descending(avg, e.policy.PayGraceDays, e.policy.PayMaxDays)
}

func (e *Engine) profitability(p *models.PeriodSignals) float64 {
	m, ok := features.GrossMargin(p.Revenue, p.CostOfGoods)
	if !ok {
		return e.policy.NeutralScore
	}
	return ascending(m, e.policy.MarginFloor, e.policy.MarginTarget)
}

func (e *Engine) debtAging(p *models.PeriodSignals) float64 {
	age, ok := features.WeightedAgingDays(p.Aging)
	if !ok {
		// nothing outstanding
		return 100
	}
	return descending(age, e.policy.AgingBestDays, e.policy.AgingWorstDays)
}

func (e *Engine) repaymentVelocity(p *models.PeriodSignals) float64 {
	ratio, ok := features.RepaymentRatio(p)
	if !ok {
		if p.Collected() > 0 {
			return 100
		}
		return e.policy.NeutralScore
	}
	return ascending(ratio, 0, e.policy.RepaymentTarget)
}

func (e *Engine) tenure(days int) float64 {
	return ascending(features.TenureMonths(days), 0, e.policy.TenureCapMonths)
}

// periodScores scores the five trended signals for one window. prior is the
// window before p, needed for revenue momentum.
func (e *Engine) periodScores(p, prior *models.PeriodSignals) models.ScoredSignals {
	return models.ScoredSignals{
		models.SignalRevenueMomentum:   e.revenueMomentum(p, prior),
		models.SignalCashCollection:    e.cashCollection(p),
		models.SignalProfitability:     e.profitability(p),
		models.SignalDebtAging:         e.debtAging(p),
		models.SignalRepaymentVelocity: e.repaymentVelocity(p),
	}
}
