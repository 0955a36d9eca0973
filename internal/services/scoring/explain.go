package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"CreditIntel/internal/domain/models"
)

var signalLabels = map[models.SignalName]string{
	models.SignalRevenueMomentum:   "revenue momentum",
	models.SignalCashCollection:    "cash collection",
	models.SignalProfitability:     "profitability",
	models.SignalDebtAging:         "debt aging",
	models.SignalRepaymentVelocity: "repayment velocity",
	models.SignalTenure:            "tenure",
}

type contribution struct {
	name   models.SignalName
	score  float64
	weight float64
}

// rankContributions orders signals by weighted contribution, highest first.
// Ties keep canonical signal order so the output never depends on map iteration.
func rankContributions(signals models.ScoredSignals, w models.SignalWeights) []contribution {
	out := make([]contribution, 0, len(models.SignalNames))
	for _, n := range models.SignalNames {
		out = append(out, contribution{name: n, score: signals[n], weight: w.Get(n)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score*out[i].weight > out[j].score*out[j].weight
	})
	return out
}

// weakest returns the lowest scoring signal that carries weight.
func weakest(signals models.ScoredSignals, w models.SignalWeights) (models.SignalName, bool) {
	var (
		name  models.SignalName
		found bool
		low   float64
	)
	for _, n := range models.SignalNames {
		if w.Get(n) <= 0 {
			continue
		}
		if !found || signals[n] < low {
			name, low, found = n, signals[n], true
		}
	}
	return name, found
}

func money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

func (e *Engine) explain(res models.CreditResult, w models.SignalWeights, th models.LearningThresholds, windowDays int, lb limitBreakdown) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s mode: credit health %.1f/100, trend %s.", res.Mode, res.CreditHealthScore, res.Trend)

	ranked := rankContributions(res.Signals, w)
	top := make([]string, 0, 2)
	for _, c := range ranked {
		if len(top) == 2 || c.weight <= 0 {
			break
		}
		top = append(top, fmt.Sprintf("%s (%.0f)", signalLabels[c.name], c.score))
	}
	if len(top) > 0 {
		fmt.Fprintf(&b, " Strongest contributors: %s.", strings.Join(top, " and "))
	}
	if n, ok := weakest(res.Signals, w); ok {
		fmt.Fprintf(&b, " Weakest signal: %s (%.0f).", signalLabels[n], res.Signals[n])
	}

	limit, _ := lb.Limit.Float64()
	runRate, _ := lb.RunRate.Float64()
	if res.Mode == models.ModeLearning && res.DataReadiness >= 100 {
		fmt.Fprintf(&b, " No revenue in the last %d days, so the limit is held at %s until sales resume.",
			windowDays, money(limit))
	} else if res.Mode == models.ModeLearning {
		fmt.Fprintf(&b, " Data readiness is %.0f%%, so the limit of %s is held between %s and %s",
			res.DataReadiness, money(limit), money(e.policy.MinimumLimit), money(e.policy.LearningCeiling))
		fmt.Fprintf(&b, " until the client has %d orders, %d days of tenure and %d orders in the last %d days.",
			th.MinOrders, th.MinTenureDays, th.MinRecentOrders, windowDays)
	} else {
		fmt.Fprintf(&b, " Limit of %s is %.1fx the monthly run-rate of %s scaled by health.",
			money(limit), e.policy.LimitMultiplier, money(runRate))
	}
	if res.CurrentExposure > 0 {
		fmt.Fprintf(&b, " Current exposure %s uses %.1f%% of the limit.", money(res.CurrentExposure), res.UtilizationPercent)
	}
	return b.String()
}
