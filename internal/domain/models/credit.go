package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SignalName identifies one of the six scoring signals.
type SignalName string

const (
	SignalRevenueMomentum   SignalName = "revenueMomentum"
	SignalCashCollection    SignalName = "cashCollection"
	SignalProfitability     SignalName = "profitability"
	SignalDebtAging         SignalName = "debtAging"
	SignalRepaymentVelocity SignalName = "repaymentVelocity"
	SignalTenure            SignalName = "tenure"
)

// SignalNames lists every signal in canonical order.
var SignalNames = []SignalName{
	SignalRevenueMomentum,
	SignalCashCollection,
	SignalProfitability,
	SignalDebtAging,
	SignalRepaymentVelocity,
	SignalTenure,
}

// TrendedSignals are the signals that carry a period-over-period trend. Tenure is monotone.
var TrendedSignals = []SignalName{
	SignalRevenueMomentum,
	SignalCashCollection,
	SignalProfitability,
	SignalDebtAging,
	SignalRepaymentVelocity,
}

// WeightSumTarget is the total every weight set must reach, within WeightSumTolerance.
const (
	WeightSumTarget    = 100.0
	WeightSumTolerance = 0.01
)

// SignalWeights holds the percentage weight of each signal.
type SignalWeights struct {
	RevenueMomentum   float64 `json:"revenueMomentum" yaml:"revenue_momentum"`
	CashCollection    float64 `json:"cashCollection" yaml:"cash_collection"`
	Profitability     float64 `json:"profitability" yaml:"profitability"`
	DebtAging         float64 `json:"debtAging" yaml:"debt_aging"`
	RepaymentVelocity float64 `json:"repaymentVelocity" yaml:"repayment_velocity"`
	Tenure            float64 `json:"tenure" yaml:"tenure"`
}

// DefaultSignalWeights returns the canonical organisation-wide weights.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		RevenueMomentum:   20,
		CashCollection:    25,
		Profitability:     20,
		DebtAging:         15,
		RepaymentVelocity: 10,
		Tenure:            10,
	}
}

// Sum returns the total of all weights.
func (w SignalWeights) Sum() float64 {
	return w.RevenueMomentum + w.CashCollection + w.Profitability +
		w.DebtAging + w.RepaymentVelocity + w.Tenure
}

// Get returns the weight for a signal name.
func (w SignalWeights) Get(name SignalName) float64 {
	switch name {
	case SignalRevenueMomentum:
		return w.RevenueMomentum
	case SignalCashCollection:
		return w.CashCollection
	case SignalProfitability:
		return w.Profitability
	case SignalDebtAging:
		return w.DebtAging
	case SignalRepaymentVelocity:
		return w.RepaymentVelocity
	case SignalTenure:
		return w.Tenure
	default:
		return 0
	}
}

// Mode tells whether a limit was computed from sufficient history.
type Mode string

const (
	ModeLearning Mode = "LEARNING"
	ModeActive   Mode = "ACTIVE"
)

// Trend is the direction of a signal between consecutive periods.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendStable    Trend = "STABLE"
	TrendWorsening Trend = "WORSENING"
)

// LearningThresholds decide when a client has enough history for ACTIVE mode.
type LearningThresholds struct {
	MinOrders       int `json:"minOrders" yaml:"min_orders" default:"12"`
	MinTenureDays   int `json:"minTenureDays" yaml:"min_tenure_days" default:"180"`
	MinRecentOrders int `json:"minRecentOrders" yaml:"min_recent_orders" default:"3"`
}

// ScoredSignals maps every signal to its [0,100] score.
type ScoredSignals map[SignalName]float64

// SignalTrends maps every trended signal to its direction.
type SignalTrends map[SignalName]Trend

// CreditResult is the outcome of one calculation or preview.
type CreditResult struct {
	ClientID           int64         `json:"clientId"`
	CreditHealthScore  float64       `json:"creditHealthScore"`
	CreditLimit        float64       `json:"creditLimit"`
	CurrentExposure    float64       `json:"currentExposure"`
	UtilizationPercent float64       `json:"utilizationPercent"`
	Mode               Mode          `json:"mode"`
	DataReadiness      float64       `json:"dataReadiness"`
	Trend              Trend         `json:"trend"`
	Signals            ScoredSignals `json:"signals"`
	SignalTrends       SignalTrends  `json:"signalTrends"`
	Explanation        string        `json:"explanation"`
	Preview            bool          `json:"preview"`
	AsOf               time.Time     `json:"asOf"`
}

// WeightsSource records where the weights of a snapshot came from.
type WeightsSource string

const (
	WeightsDefault  WeightsSource = "default"
	WeightsOverride WeightsSource = "override"
)

// CreditSnapshot is the persisted envelope around a calculated result.
type CreditSnapshot struct {
	ID            uuid.UUID     `json:"id"`
	ClientID      int64         `json:"clientId"`
	Result        CreditResult  `json:"result"`
	Weights       SignalWeights `json:"weights"`
	WeightsSource WeightsSource `json:"weightsSource"`
	Version       int64         `json:"version"`
	CalculatedAt  time.Time     `json:"calculatedAt"`
}

// NewCreditSnapshot wraps a result for persistence.
func NewCreditSnapshot(res CreditResult, w SignalWeights, src WeightsSource, at time.Time) CreditSnapshot {
	return CreditSnapshot{
		ID:            uuid.New(),
		ClientID:      res.ClientID,
		Result:        res,
		Weights:       w,
		WeightsSource: src,
		Version:       1,
		CalculatedAt:  at.UTC(),
	}
}

// CreditSettings is the organisation-wide configuration row.
type CreditSettings struct {
	Weights   SignalWeights      `json:"weights"`
	Learning  LearningThresholds `json:"learning"`
	UpdatedAt time.Time          `json:"updatedAt"`
	UpdatedBy string             `json:"updatedBy,omitempty"`
}

// Round2 rounds to cents, used for every reported percentage and score.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
