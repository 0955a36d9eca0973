package repository

import (
	"time"

	"CreditIntel/pkg/util"
)

// DefaultWindowDays is the length of one rolling scoring period.
const DefaultWindowDays = 90

// Window is a half-open [From, To) time range.
type Window struct {
	From time.Time
	To   time.Time
}

// PeriodWindows splits the time before asOf into three consecutive windows of the
// given length: current (newest), previous and baseline (oldest). Boundaries are
// aligned to UTC midnight so that repeated calls on the same day query the same rows.
func PeriodWindows(asOf time.Time, days int) (current, previous, baseline Window) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	end := util.StartOfDay(asOf).AddDate(0, 0, 1)
	span := time.Duration(days) * 24 * time.Hour

	current = Window{From: end.Add(-span), To: end}
	previous = Window{From: current.From.Add(-span), To: current.From}
	baseline = Window{From: previous.From.Add(-span), To: previous.From}
	return current, previous, baseline
}
