package domain

import (
	"fmt"
	"strings"
)

// InvalidBasketError reports a malformed basket: no underlyings, a nil or
// unpriced underlying, or a basket type that does not match the underlying count.
// It blocks every downstream computation for the product.
type InvalidBasketError struct {
	BasketType BasketType
	Count      int
	Reason     string
}

func (e *InvalidBasketError) Error() string {
	return fmt.Sprintf("invalid basket (type=%s, underlyings=%d): %s", e.BasketType, e.Count, e.Reason)
}

// ScheduleConfigError reports a coupon frequency that cannot produce an even schedule.
// The schedule is omitted and only maturity payout semantics apply.
type ScheduleConfigError struct {
	CouponFrequency int
	TenorMonths     int
	Reason          string
}

func (e *ScheduleConfigError) Error() string {
	return fmt.Sprintf("invalid coupon schedule (frequency=%d/yr, tenor=%dm): %s", e.CouponFrequency, e.TenorMonths, e.Reason)
}

// UnknownBucketError reports a bucket tag outside the three product families.
// It is a data contract violation and is never coerced to a default bucket.
type UnknownBucketError struct {
	Tag string
}

func (e *UnknownBucketError) Error() string {
	return fmt.Sprintf("unknown product bucket %q", e.Tag)
}

// MissingTermsForBucketError reports a known bucket tag whose terms are absent.
// Callers render an empty state rather than failing hard.
type MissingTermsForBucketError struct {
	Bucket Bucket
}

func (e *MissingTermsForBucketError) Error() string {
	if e.Bucket == "" {
		return "no terms supplied for product"
	}
	return fmt.Sprintf("no %s terms supplied for bucket %s", e.Bucket.DisplayName(), e.Bucket)
}

// ValidationError represents a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// orNil returns nil for an empty list so callers can `return errs.orNil()`.
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
