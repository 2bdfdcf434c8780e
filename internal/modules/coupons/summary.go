package coupons

import (
	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/pkg/formulas"
)

// Summary totals a coupon schedule.
type Summary struct {
	Count       int                 `json:"count"`
	PaidCount   int                 `json:"paid_count"`
	Paid        float64             `json:"paid"`
	Projected   float64             `json:"projected"` // upcoming and pending amounts
	Forfeited   float64             `json:"forfeited"` // lost to the conditional barrier
	NextPayment *domain.CouponEntry `json:"next_payment,omitempty"`
}

// PaidAmount sums the amounts of paid entries.
func PaidAmount(entries []domain.CouponEntry) float64 {
	var amounts []float64
	for _, e := range entries {
		if e.Status == domain.CouponPaid {
			amounts = append(amounts, e.Amount)
		}
	}
	return formulas.RoundMoney(formulas.Sum(amounts))
}

// Summarize totals the schedule. Forfeited amounts are rebuilt from each entry's period rate.
func Summarize(entries []domain.CouponEntry, notional float64) Summary {
	s := Summary{Count: len(entries)}
	var paid, projected, forfeited []float64
	for i, e := range entries {
		if e.BarrierBreached {
			forfeited = append(forfeited, notional*e.CouponRate/100)
		}
		switch e.Status {
		case domain.CouponPaid:
			s.PaidCount++
			paid = append(paid, e.Amount)
		case domain.CouponUpcoming:
			next := entries[i]
			s.NextPayment = &next
			projected = append(projected, e.Amount)
		default:
			projected = append(projected, e.Amount)
		}
	}
	s.Paid = formulas.RoundMoney(formulas.Sum(paid))
	s.Projected = formulas.RoundMoney(formulas.Sum(projected))
	s.Forfeited = formulas.RoundMoney(formulas.Sum(forfeited))
	return s
}
