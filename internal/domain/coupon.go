package domain

import "time"

// CouponStatus moves strictly forward: pending -> upcoming -> paid.
type CouponStatus string

const (
	CouponPending  CouponStatus = "pending"
	CouponUpcoming CouponStatus = "upcoming"
	CouponPaid     CouponStatus = "paid"
)

// Rank orders statuses along their forward-only transition.
func (s CouponStatus) Rank() int {
	switch s {
	case CouponUpcoming:
		return 1
	case CouponPaid:
		return 2
	default:
		return 0
	}
}

// CouponEntry is one coupon period of a Regular Income product.
type CouponEntry struct {
	ObservationDate time.Time    `json:"observation_date"`
	PaymentDate     time.Time    `json:"payment_date"`
	CouponRate      float64      `json:"coupon_rate"` // period rate in percent of notional
	Amount          float64      `json:"amount"`
	Status          CouponStatus `json:"status"`
	BarrierChecked  bool         `json:"barrier_checked"`
	BarrierBreached bool         `json:"barrier_breached"`
}
