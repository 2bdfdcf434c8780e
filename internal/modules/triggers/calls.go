package triggers

import (
	"time"

	"github.com/aristath/noteengine/internal/domain"
)

// CallDates lists the issuer-call observation dates, every FrequencyMonths from
// FirstCallMonth (or from the first period when unset), strictly before maturity.
func CallDates(p *domain.ProductLifecycleData, ic *domain.IssuerCall) []time.Time {
	if ic == nil || !ic.Enabled || ic.FrequencyMonths <= 0 {
		return nil
	}
	anchor := domain.DateOnly(p.AnchorDate())
	tenor := domain.MonthsBetween(anchor, domain.DateOnly(p.MaturityDate))

	first := ic.FirstCallMonth
	if first <= 0 {
		first = ic.FrequencyMonths
	}

	var dates []time.Time
	for m := first; m < tenor; m += ic.FrequencyMonths {
		dates = append(dates, domain.AddMonths(anchor, m))
	}
	return dates
}

// CallMonth returns the months elapsed since inception when date is a call observation date.
func CallMonth(p *domain.ProductLifecycleData, ic *domain.IssuerCall, date time.Time) (int, bool) {
	anchor := domain.DateOnly(p.AnchorDate())
	for _, d := range CallDates(p, ic) {
		if domain.SameDate(d, date) {
			return domain.MonthsBetween(anchor, d), true
		}
	}
	return 0, false
}

// NextCallDate is the first call observation date strictly after at.
func NextCallDate(p *domain.ProductLifecycleData, ic *domain.IssuerCall, at time.Time) (time.Time, bool) {
	cutoff := domain.DateOnly(at)
	for _, d := range CallDates(p, ic) {
		if d.After(cutoff) {
			return d, true
		}
	}
	return time.Time{}, false
}
