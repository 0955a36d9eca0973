package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
)

var testAsOf = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

var defaultThresholds = models.LearningThresholds{MinOrders: 12, MinTenureDays: 180, MinRecentOrders: 3}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e
}

// period builds a window where the whole revenue was invoiced and paid payDays later.
func period(revenue, cogs float64, orders, payDays int, aging models.AgingBuckets) *models.PeriodSignals {
	p := &models.PeriodSignals{Revenue: revenue, CostOfGoods: cogs, OrderCount: orders, Aging: &aging}
	if revenue > 0 {
		inv := testAsOf.AddDate(0, -1, 0)
		p.Payments = []models.PaymentRecord{{InvoicedAt: inv, PaidAt: inv.AddDate(0, 0, payDays), Amount: revenue}}
	}
	return p
}

func newClientSignals() *models.RawSignals {
	return &models.RawSignals{
		ClientID:   1,
		AsOf:       testAsOf,
		WindowDays: 90,
		Current:    period(0, 0, 0, 0, models.AgingBuckets{}),
		Previous:   period(0, 0, 0, 0, models.AgingBuckets{}),
		Baseline:   period(0, 0, 0, 0, models.AgingBuckets{}),
	}
}

func establishedGrowingClient() *models.RawSignals {
	return &models.RawSignals{
		ClientID:        2,
		AsOf:            testAsOf,
		WindowDays:      90,
		Baseline:        period(30000, 21000, 10, 10, models.AgingBuckets{Current: 5000}),
		Previous:        period(33000, 23100, 11, 10, models.AgingBuckets{Current: 5000}),
		Current:         period(45000, 31500, 12, 10, models.AgingBuckets{Current: 5000}),
		TenureDays:      730,
		LifetimeOrders:  60,
		CurrentExposure: 7000,
	}
}

func TestScore_NewClientIsLearningAtFloor(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Score(newClientSignals(), models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.ModeLearning, res.Mode)
	assert.Equal(t, 1000.0, res.CreditLimit)
	assert.InDelta(t, 0, res.DataReadiness, 0.01)
	assert.Equal(t, models.TrendStable, res.Trend)
	assert.Equal(t, 0.0, res.Signals[models.SignalTenure])
	assert.Equal(t, 100.0, res.Signals[models.SignalDebtAging])
	assert.Equal(t, 50.0, res.Signals[models.SignalCashCollection])
	assert.InDelta(t, 52.5, res.CreditHealthScore, 0.01)
	assert.Equal(t, 0.0, res.UtilizationPercent)
	assert.Contains(t, res.Explanation, "LEARNING mode")
}

func TestScore_EstablishedGrowingClientIsActive(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Score(establishedGrowingClient(), models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.ModeActive, res.Mode)
	assert.Greater(t, res.CreditHealthScore, 70.0)
	assert.Equal(t, models.TrendImproving, res.Trend)
	assert.Equal(t, models.TrendImproving, res.SignalTrends[models.SignalRevenueMomentum])
	assert.Equal(t, models.TrendStable, res.SignalTrends[models.SignalCashCollection])
	assert.InDelta(t, 100, res.DataReadiness, 0.001)
	assert.Equal(t, 28000.0, res.CreditLimit)
	assert.InDelta(t, 25.0, res.UtilizationPercent, 0.01)
	assert.Contains(t, res.Explanation, "ACTIVE mode")
	assert.Contains(t, res.Explanation, "$28,000")
}

func TestScore_ResultShape(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Score(establishedGrowingClient(), models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Len(t, res.Signals, 6)
	assert.Len(t, res.SignalTrends, 5)
	_, hasTenureTrend := res.SignalTrends[models.SignalTenure]
	assert.False(t, hasTenureTrend)
	assert.Equal(t, int64(2), res.ClientID)
	assert.Equal(t, testAsOf, res.AsOf)
}

func TestScore_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	raw := establishedGrowingClient()

	first, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_LearningModeDominance(t *testing.T) {
	e := newTestEngine(t)

	raw := establishedGrowingClient()
	raw.LifetimeOrders = 2
	raw.Current.Revenue = 900000
	raw.Current.CostOfGoods = 300000

	res, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.ModeLearning, res.Mode)
	assert.Greater(t, res.CreditHealthScore, 80.0)
	assert.Equal(t, 5000.0, res.CreditLimit)
}

func TestScore_LearningModeUsesFractionBelowCeiling(t *testing.T) {
	e := newTestEngine(t)

	raw := establishedGrowingClient()
	raw.TenureDays = 90
	raw.Current.Revenue = 9000
	raw.Current.CostOfGoods = 6300
	raw.Current.Payments[0].Amount = 9000

	res, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.ModeLearning, res.Mode)
	assert.GreaterOrEqual(t, res.CreditLimit, 1000.0)
	assert.LessOrEqual(t, res.CreditLimit, 5000.0)
	assert.Equal(t, 0.0, math.Mod(res.CreditLimit, 100))
}

func TestScore_ScoresAreClamped(t *testing.T) {
	e := newTestEngine(t)

	raw := &models.RawSignals{
		ClientID:   3,
		AsOf:       testAsOf,
		WindowDays: 30,
		Baseline:   period(1, 10, 1, 400, models.AgingBuckets{Over90: 1e9}),
		Previous:   period(1, 10, 1, 400, models.AgingBuckets{Over90: 1e9}),
		Current: &models.PeriodSignals{
			Revenue:     1e12,
			CostOfGoods: 5e12,
			OrderCount:  5,
			Payments: []models.PaymentRecord{
				{InvoicedAt: testAsOf, PaidAt: testAsOf.AddDate(0, 0, 900), Amount: 3e12},
			},
			Aging: &models.AgingBuckets{Over90: 1e12},
		},
		TenureDays:      100000,
		LifetimeOrders:  10000,
		CurrentExposure: 1e9,
	}

	res, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	for _, n := range models.SignalNames {
		assert.GreaterOrEqual(t, res.Signals[n], 0.0, n)
		assert.LessOrEqual(t, res.Signals[n], 100.0, n)
	}
	assert.GreaterOrEqual(t, res.CreditHealthScore, 0.0)
	assert.LessOrEqual(t, res.CreditHealthScore, 100.0)
}

func TestScore_WorseningCashCollection(t *testing.T) {
	e := newTestEngine(t)

	raw := establishedGrowingClient()
	raw.Baseline = period(30000, 21000, 10, 10, models.AgingBuckets{Current: 5000})
	raw.Previous = period(30000, 21000, 10, 10, models.AgingBuckets{Current: 5000})
	raw.Current = period(30000, 21000, 10, 60, models.AgingBuckets{Current: 5000})

	res, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.TrendWorsening, res.SignalTrends[models.SignalCashCollection])
	assert.InDelta(t, 40, res.Signals[models.SignalCashCollection], 0.01)
	assert.Equal(t, models.TrendWorsening, res.Trend)
}

func TestScore_WeightErrorsBeforeDataChecks(t *testing.T) {
	e := newTestEngine(t)

	t.Run("sum off by one", func(t *testing.T) {
		w := models.DefaultSignalWeights()
		w.Tenure = 9
		_, err := e.Score(nil, w, defaultThresholds)
		var sumErr *models.WeightSumError
		require.True(t, errors.As(err, &sumErr))
		assert.InDelta(t, 99, sumErr.Sum, 1e-9)
	})

	t.Run("negative weight", func(t *testing.T) {
		w := models.SignalWeights{RevenueMomentum: -10, CashCollection: 60, Profitability: 20, DebtAging: 10, RepaymentVelocity: 10, Tenure: 10}
		_, err := e.Score(establishedGrowingClient(), w, defaultThresholds)
		var invErr *models.InvalidWeightsError
		require.True(t, errors.As(err, &invErr))
		assert.Equal(t, models.SignalRevenueMomentum, invErr.Signal)
	})
}

func TestScore_IncompleteSignalData(t *testing.T) {
	e := newTestEngine(t)

	cases := map[string]func(r *models.RawSignals){
		"previous":                  func(r *models.RawSignals) { r.Previous = nil },
		"current.aging":             func(r *models.RawSignals) { r.Current.Aging = nil },
		"windowDays":                func(r *models.RawSignals) { r.WindowDays = 0 },
		"asOf":                      func(r *models.RawSignals) { r.AsOf = time.Time{} },
		"baseline":                  func(r *models.RawSignals) { r.Baseline.Revenue = math.NaN() },
		"lifetimeOrders":            func(r *models.RawSignals) { r.LifetimeOrders = -1 },
		"currentExposure":           func(r *models.RawSignals) { r.CurrentExposure = -2500 },
		"current.aging.over90":      func(r *models.RawSignals) { r.Current.Aging.Over90 = -1 },
		"baseline.aging.days31To60": func(r *models.RawSignals) { r.Baseline.Aging.Days31To60 = -400 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			raw := establishedGrowingClient()
			mutate(raw)
			_, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
			var incErr *models.IncompleteSignalDataError
			require.True(t, errors.As(err, &incErr), "got %v", err)
			assert.Equal(t, field, incErr.Field)
		})
	}
}

func TestScore_ZeroRevenueIsLearningAtFloor(t *testing.T) {
	e := newTestEngine(t)
	raw := establishedGrowingClient()
	raw.Baseline = period(0, 0, 10, 0, models.AgingBuckets{})
	raw.Previous = period(0, 0, 11, 0, models.AgingBuckets{})
	raw.Current = period(0, 0, 12, 0, models.AgingBuckets{})

	res, err := e.Score(raw, models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)

	assert.InDelta(t, 100, res.DataReadiness, 0.001)
	assert.Equal(t, models.ModeLearning, res.Mode)
	assert.Equal(t, 1000.0, res.CreditLimit)
	assert.Contains(t, res.Explanation, "No revenue in the last 90 days")
}

func TestScore_CustomLimitPolicy(t *testing.T) {
	e := newTestEngine(t, WithLimits(1.0, 500, 2500, 0.5, 50))

	res, err := e.Score(newClientSignals(), models.DefaultSignalWeights(), defaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.CreditLimit)
}

func TestNewEngine_RejectsDegeneratePolicy(t *testing.T) {
	_, err := NewEngine(WithPaymentCurve(30, 30))
	require.Error(t, err)

	_, err = NewEngine(WithLimits(2, 6000, 5000, 0.25, 100))
	require.Error(t, err)
}
