package models

import (
	"fmt"
	"math"
	"time"
)

// PaymentRecord is one settled invoice within a period.
type PaymentRecord struct {
	InvoicedAt time.Time `json:"invoicedAt"`
	PaidAt     time.Time `json:"paidAt"`
	Amount     float64   `json:"amount"`
}

// DaysToPay returns the whole days between invoice and payment, never negative.
func (p PaymentRecord) DaysToPay() float64 {
	d := p.PaidAt.Sub(p.InvoicedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// AgingBuckets is the open receivable balance split by age at period end.
type AgingBuckets struct {
	Current    float64 `json:"current"`
	Days31To60 float64 `json:"days31To60"`
	Days61To90 float64 `json:"days61To90"`
	Over90     float64 `json:"over90"`
}

// Total returns the whole outstanding balance.
func (a AgingBuckets) Total() float64 {
	return a.Current + a.Days31To60 + a.Days61To90 + a.Over90
}

// PeriodSignals are the raw metrics of one rolling window.
type PeriodSignals struct {
	Revenue     float64         `json:"revenue"`
	CostOfGoods float64         `json:"costOfGoods"`
	OrderCount  int             `json:"orderCount"`
	Payments    []PaymentRecord `json:"payments"`
	Aging       *AgingBuckets   `json:"aging"`
}

// Collected returns the sum of payment amounts in the period.
func (p *PeriodSignals) Collected() float64 {
	var sum float64
	for _, pay := range p.Payments {
		sum += pay.Amount
	}
	return sum
}

// RawSignals is what the signal collector hands to the scoring engine for one client.
// Baseline is the oldest of the three consecutive windows, Current the newest.
type RawSignals struct {
	ClientID        int64          `json:"clientId"`
	AsOf            time.Time      `json:"asOf"`
	WindowDays      int            `json:"windowDays"`
	Current         *PeriodSignals `json:"current"`
	Previous        *PeriodSignals `json:"previous"`
	Baseline        *PeriodSignals `json:"baseline"`
	TenureDays      int            `json:"tenureDays"`
	LifetimeOrders  int            `json:"lifetimeOrders"`
	CurrentExposure float64        `json:"currentExposure"`
}

// Validate checks the structure of the raw input. Zero values are allowed; missing records are not.
func (r *RawSignals) Validate() error {
	if r == nil {
		return &IncompleteSignalDataError{Field: "raw", Reason: "missing"}
	}
	if r.AsOf.IsZero() {
		return &IncompleteSignalDataError{Field: "asOf", Reason: "missing"}
	}
	if r.WindowDays <= 0 {
		return &IncompleteSignalDataError{Field: "windowDays", Reason: "must be positive"}
	}
	if r.TenureDays < 0 {
		return &IncompleteSignalDataError{Field: "tenureDays", Reason: "negative"}
	}
	if r.LifetimeOrders < 0 {
		return &IncompleteSignalDataError{Field: "lifetimeOrders", Reason: "negative"}
	}
	if !finite(r.CurrentExposure) {
		return &IncompleteSignalDataError{Field: "currentExposure", Reason: "not a number"}
	}
	if r.CurrentExposure < 0 {
		return &IncompleteSignalDataError{Field: "currentExposure", Reason: "negative"}
	}
	periods := []struct {
		name string
		p    *PeriodSignals
	}{
		{"current", r.Current},
		{"previous", r.Previous},
		{"baseline", r.Baseline},
	}
	for _, it := range periods {
		if err := validatePeriod(it.name, it.p); err != nil {
			return err
		}
	}
	return nil
}

func validatePeriod(name string, p *PeriodSignals) error {
	if p == nil {
		return &IncompleteSignalDataError{Field: name, Reason: "missing"}
	}
	if p.Aging == nil {
		return &IncompleteSignalDataError{Field: name + ".aging", Reason: "missing"}
	}
	if p.OrderCount < 0 {
		return &IncompleteSignalDataError{Field: name + ".orderCount", Reason: "negative"}
	}
	for _, v := range []float64{p.Revenue, p.CostOfGoods, p.Aging.Current, p.Aging.Days31To60, p.Aging.Days61To90, p.Aging.Over90} {
		if !finite(v) {
			return &IncompleteSignalDataError{Field: name, Reason: "not a number"}
		}
	}
	buckets := []struct {
		field string
		v     float64
	}{
		{"current", p.Aging.Current},
		{"days31To60", p.Aging.Days31To60},
		{"days61To90", p.Aging.Days61To90},
		{"over90", p.Aging.Over90},
	}
	for _, bk := range buckets {
		if bk.v < 0 {
			return &IncompleteSignalDataError{Field: name + ".aging." + bk.field, Reason: "negative"}
		}
	}
	for i, pay := range p.Payments {
		if !finite(pay.Amount) {
			return &IncompleteSignalDataError{Field: fmt.Sprintf("%s.payments[%d]", name, i), Reason: "not a number"}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
