package features

import (
	"math"

	"CreditIntel/internal/domain/models"
)

// DaysPerMonth is the average month length used for run-rate and tenure conversions.
const DaysPerMonth = 30.4375

// Midpoints of the receivable aging buckets, in days.
const (
	AgingCurrentMid = 15.0
	Aging31To60Mid  = 45.0
	Aging61To90Mid  = 75.0
	AgingOver90Mid  = 120.0
)

// RevenueGrowth returns the relative change (cur-prev)/prev.
// With no prior revenue it returns 1 when revenue appeared and 0 otherwise.
func RevenueGrowth(cur, prev float64) float64 {
	if prev <= 0 {
		if cur > 0 {
			return 1
		}
		return 0
	}
	return (cur - prev) / prev
}

// AvgDaysToPay returns the amount-weighted average days between invoice and payment.
// Falls back to a plain mean when every amount is zero. ok is false without payments.
func AvgDaysToPay(payments []models.PaymentRecord) (avg float64, ok bool) {
	if len(payments) == 0 {
		return 0, false
	}
	var weighted, total, plain float64
	for _, p := range payments {
		d := p.DaysToPay()
		plain += d
		if p.Amount > 0 {
			weighted += d * p.Amount
			total += p.Amount
		}
	}
	if total > 0 {
		return weighted / total, true
	}
	return plain / float64(len(payments)), true
}

// GrossMargin returns (revenue-cogs)/revenue. ok is false without revenue.
func GrossMargin(revenue, cogs float64) (float64, bool) {
	if revenue <= 0 {
		return 0, false
	}
	return (revenue - cogs) / revenue, true
}

// WeightedAgingDays returns the balance-weighted age of open receivables.
// ok is false when nothing is outstanding.
func WeightedAgingDays(a *models.AgingBuckets) (float64, bool) {
	if a == nil {
		return 0, false
	}
	total := a.Total()
	if total <= 0 {
		return 0, false
	}
	sum := a.Current*AgingCurrentMid +
		a.Days31To60*Aging31To60Mid +
		a.Days61To90*Aging61To90Mid +
		a.Over90*AgingOver90Mid
	return sum / total, true
}

// RepaymentRatio returns cash collected over amount billed in the period.
// ok is false when nothing was billed.
func RepaymentRatio(p *models.PeriodSignals) (float64, bool) {
	if p == nil || p.Revenue <= 0 {
		return 0, false
	}
	return p.Collected() / p.Revenue, true
}

// MonthlyRunRate scales period revenue to a 30.4375-day month.
func MonthlyRunRate(revenue float64, windowDays int) float64 {
	if windowDays <= 0 || revenue <= 0 {
		return 0
	}
	return revenue / float64(windowDays) * DaysPerMonth
}

// TenureMonths converts relationship length in days to months.
func TenureMonths(days int) float64 {
	if days <= 0 {
		return 0
	}
	return float64(days) / DaysPerMonth
}

// Clamp bounds v to [lo, hi]; NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
