// Package coupons generates and reconciles the coupon schedule of Regular Income products.
package coupons

import (
	"sort"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/aristath/noteengine/pkg/formulas"
)

// FixingSource supplies the basket reference level observed on a date.
// *domain.ProductLifecycleData satisfies it.
type FixingSource interface {
	FixingOn(date time.Time) (float64, bool)
}

// Params describes one schedule generation.
type Params struct {
	Terms          *domain.RegularIncomeTerms
	TradeDate      time.Time
	MaturityDate   time.Time
	Notional       float64
	PaymentLagDays int
	Fixings        FixingSource // may be nil; unchecked entries keep their amount
	At             time.Time
	// CurrentLevel is the live basket level. It checks an observation falling on At
	// when no fixing was recorded for it. Nil means unknown.
	CurrentLevel *float64
	// TerminatedOn drops observations after an early termination (autocall). Zero means none.
	TerminatedOn time.Time
}

// Count returns the number of coupon periods for a tenor and a coupons-per-year frequency.
func Count(tenorMonths, frequency int) (int, error) {
	if frequency <= 0 {
		return 0, &domain.ScheduleConfigError{CouponFrequency: frequency, TenorMonths: tenorMonths, Reason: "coupon frequency must be positive"}
	}
	if 12%frequency != 0 {
		return 0, &domain.ScheduleConfigError{CouponFrequency: frequency, TenorMonths: tenorMonths, Reason: "coupon frequency must divide 12"}
	}
	count := tenorMonths * frequency / 12
	if count <= 0 {
		return 0, &domain.ScheduleConfigError{CouponFrequency: frequency, TenorMonths: tenorMonths, Reason: "tenor is shorter than one coupon period"}
	}
	return count, nil
}

// PeriodAmount is the coupon paid per period, rounded half-up to cents.
func PeriodAmount(notional, ratePA float64, frequency int) float64 {
	if frequency <= 0 {
		return 0
	}
	return formulas.RoundMoney(notional * ratePA / 100 / float64(frequency))
}

// Generate builds the schedule ordered by observation date.
func Generate(p Params) ([]domain.CouponEntry, error) {
	if p.Terms == nil {
		return nil, &domain.MissingTermsForBucketError{Bucket: domain.BucketRegularIncome}
	}
	freq := p.Terms.CouponFrequency
	count, err := Count(domain.MonthsBetween(p.TradeDate, p.MaturityDate), freq)
	if err != nil {
		return nil, err
	}

	interval := 12 / freq
	amount := PeriodAmount(p.Notional, p.Terms.CouponRatePA, freq)
	periodRate := p.Terms.CouponRatePA / float64(freq)
	at := domain.DateOnly(p.At)
	start := domain.DateOnly(p.TradeDate)

	entries := make([]domain.CouponEntry, 0, count)
	for i := 1; i <= count; i++ {
		obs := domain.AddMonths(start, i*interval)
		if !p.TerminatedOn.IsZero() && obs.After(domain.DateOnly(p.TerminatedOn)) {
			break
		}
		entry := domain.CouponEntry{
			ObservationDate: obs,
			PaymentDate:     obs.AddDate(0, 0, p.PaymentLagDays),
			CouponRate:      periodRate,
			Amount:          amount,
		}
		if p.Terms.ConditionalCoupon && !obs.After(at) {
			if level, ok := p.observedLevel(obs, at); ok {
				entry.BarrierChecked = true
				entry.BarrierBreached = triggers.BelowLevel(level, p.Terms.ProtectionLevelPct)
				if entry.BarrierBreached {
					entry.Amount = 0
				}
			}
		}
		entries = append(entries, entry)
	}

	assignStatuses(entries, at)
	return entries, nil
}

// observedLevel is the fixing recorded on obs, falling back to the live level when obs is today.
func (p Params) observedLevel(obs, at time.Time) (float64, bool) {
	if p.Fixings != nil {
		if level, ok := p.Fixings.FixingOn(obs); ok {
			return level, true
		}
	}
	if p.CurrentLevel != nil && obs.Equal(at) {
		return *p.CurrentLevel, true
	}
	return 0, false
}

// assignStatuses marks entries paid once their payment date has passed, the next one
// upcoming and the rest pending.
func assignStatuses(entries []domain.CouponEntry, at time.Time) {
	upcomingSet := false
	for i := range entries {
		switch {
		case !entries[i].PaymentDate.After(at):
			entries[i].Status = domain.CouponPaid
		case !upcomingSet:
			entries[i].Status = domain.CouponUpcoming
			upcomingSet = true
		default:
			entries[i].Status = domain.CouponPending
		}
	}
}

// Reconcile merges a freshly generated schedule into a previous one.
// Paid entries are carried over untouched and no status moves backwards.
func Reconcile(previous, fresh []domain.CouponEntry) []domain.CouponEntry {
	byDate := make(map[time.Time]domain.CouponEntry, len(previous))
	for _, e := range previous {
		byDate[domain.DateOnly(e.ObservationDate)] = e
	}

	out := make([]domain.CouponEntry, 0, len(fresh))
	seen := make(map[time.Time]bool, len(fresh))
	for _, e := range fresh {
		key := domain.DateOnly(e.ObservationDate)
		seen[key] = true
		prev, ok := byDate[key]
		switch {
		case !ok:
			out = append(out, e)
		case prev.Status == domain.CouponPaid:
			out = append(out, prev)
		default:
			if prev.BarrierChecked && !e.BarrierChecked {
				e.BarrierChecked = true
				e.BarrierBreached = prev.BarrierBreached
				e.Amount = prev.Amount
			}
			if prev.Status.Rank() > e.Status.Rank() {
				e.Status = prev.Status
			}
			out = append(out, e)
		}
	}

	// paid history survives even if the fresh schedule no longer covers it
	for _, e := range previous {
		if e.Status == domain.CouponPaid && !seen[domain.DateOnly(e.ObservationDate)] {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservationDate.Before(out[j].ObservationDate)
	})
	return out
}
