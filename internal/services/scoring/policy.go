package scoring

import (
	"errors"
	"fmt"
)

// Policy holds every tunable coefficient of the scoring curves and the limit formula.
type Policy struct {
	TrendThreshold float64
	NeutralScore   float64

	GrowthScale     float64
	PayGraceDays    float64
	PayMaxDays      float64
	MarginFloor     float64
	MarginTarget    float64
	AgingBestDays   float64
	AgingWorstDays  float64
	RepaymentTarget float64
	TenureCapMonths float64

	LimitMultiplier  float64
	MinimumLimit     float64
	LearningCeiling  float64
	LearningFraction float64
	RoundTo          float64
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		TrendThreshold:   5,
		NeutralScore:     50,
		GrowthScale:      0.5,
		PayGraceDays:     15,
		PayMaxDays:       90,
		MarginFloor:      -0.10,
		MarginTarget:     0.40,
		AgingBestDays:    15,
		AgingWorstDays:   120,
		RepaymentTarget:  1.0,
		TenureCapMonths:  24,
		LimitMultiplier:  2.0,
		MinimumLimit:     1000,
		LearningCeiling:  5000,
		LearningFraction: 0.25,
		RoundTo:          100,
	}
}

// Validate rejects coefficient sets that would make a curve degenerate.
func (p Policy) Validate() error {
	var errs []error
	if p.TrendThreshold < 0 {
		errs = append(errs, fmt.Errorf("trend threshold must be >= 0"))
	}
	if p.NeutralScore < 0 || p.NeutralScore > 100 {
		errs = append(errs, fmt.Errorf("neutral score must be within [0,100]"))
	}
	if p.GrowthScale <= 0 {
		errs = append(errs, fmt.Errorf("growth scale must be > 0"))
	}
	if p.PayMaxDays <= p.PayGraceDays {
		errs = append(errs, fmt.Errorf("pay max days must exceed grace days"))
	}
	if p.MarginTarget <= p.MarginFloor {
		errs = append(errs, fmt.Errorf("margin target must exceed margin floor"))
	}
	if p.AgingWorstDays <= p.AgingBestDays {
		errs = append(errs, fmt.Errorf("aging worst days must exceed best days"))
	}
	if p.RepaymentTarget <= 0 {
		errs = append(errs, fmt.Errorf("repayment target must be > 0"))
	}
	if p.TenureCapMonths <= 0 {
		errs = append(errs, fmt.Errorf("tenure cap must be > 0"))
	}
	if p.LimitMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("limit multiplier must be > 0"))
	}
	if p.MinimumLimit <= 0 {
		errs = append(errs, fmt.Errorf("minimum limit must be > 0"))
	}
	if p.LearningCeiling < p.MinimumLimit {
		errs = append(errs, fmt.Errorf("learning ceiling must be >= minimum limit"))
	}
	if p.LearningFraction <= 0 || p.LearningFraction > 1 {
		errs = append(errs, fmt.Errorf("learning fraction must be within (0,1]"))
	}
	if p.RoundTo < 0 {
		errs = append(errs, fmt.Errorf("round_to must be >= 0"))
	}
	return errors.Join(errs...)
}

// Option configures the Engine.
type Option func(*Policy)

// WithPolicy replaces the whole policy.
func WithPolicy(p Policy) Option {
	return func(dst *Policy) {
		*dst = p
	}
}

// WithTrendThreshold sets the score delta that separates STABLE from a direction.
func WithTrendThreshold(v float64) Option {
	return func(p *Policy) {
		p.TrendThreshold = v
	}
}

// WithNeutralScore sets the score used when a signal has no evidence.
func WithNeutralScore(v float64) Option {
	return func(p *Policy) {
		p.NeutralScore = v
	}
}

// WithPaymentCurve sets the days-to-pay grace and zero-score points.
func WithPaymentCurve(graceDays, maxDays float64) Option {
	return func(p *Policy) {
		p.PayGraceDays = graceDays
		p.PayMaxDays = maxDays
	}
}

// WithMarginCurve sets the gross margin that scores 0 and 100.
func WithMarginCurve(floor, target float64) Option {
	return func(p *Policy) {
		p.MarginFloor = floor
		p.MarginTarget = target
	}
}

// WithAgingCurve sets the weighted receivable age that scores 100 and 0.
func WithAgingCurve(bestDays, worstDays float64) Option {
	return func(p *Policy) {
		p.AgingBestDays = bestDays
		p.AgingWorstDays = worstDays
	}
}

// WithTenureCap sets the months after which tenure scores 100.
func WithTenureCap(months float64) Option {
	return func(p *Policy) {
		p.TenureCapMonths = months
	}
}

// WithLimits sets the limit formula coefficients.
func WithLimits(multiplier, minimum, learningCeiling, learningFraction, roundTo float64) Option {
	return func(p *Policy) {
		p.LimitMultiplier = multiplier
		p.MinimumLimit = minimum
		p.LearningCeiling = learningCeiling
		p.LearningFraction = learningFraction
		p.RoundTo = roundTo
	}
}
