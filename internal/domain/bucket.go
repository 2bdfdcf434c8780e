// Package domain holds the structured-note model shared by the engine packages:
// terms per product bucket, baskets of underlyings with their breach history,
// coupon entries and the product lifecycle aggregate.
package domain

import "strings"

// Bucket is one of the three structured-product families.
type Bucket string

const (
	BucketRegularIncome     Bucket = "regular_income"
	BucketCapitalProtection Bucket = "capital_protection"
	BucketBoostedGrowth     Bucket = "boosted_growth"
)

// Buckets lists every supported bucket in display order.
var Buckets = []Bucket{BucketRegularIncome, BucketCapitalProtection, BucketBoostedGrowth}

// ParseBucket accepts the canonical tag or a display name ("Regular Income",
// "capital-protection") and rejects anything else with UnknownBucketError.
func ParseBucket(tag string) (Bucket, error) {
	norm := strings.ToLower(strings.TrimSpace(tag))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	b := Bucket(norm)
	if !b.Valid() {
		return "", &UnknownBucketError{Tag: tag}
	}
	return b, nil
}

// Valid reports whether b is one of the three defined buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketRegularIncome, BucketCapitalProtection, BucketBoostedGrowth:
		return true
	}
	return false
}

// DisplayName returns the human readable family name.
func (b Bucket) DisplayName() string {
	switch b {
	case BucketRegularIncome:
		return "Regular Income"
	case BucketCapitalProtection:
		return "Capital Protection"
	case BucketBoostedGrowth:
		return "Boosted Growth"
	}
	return string(b)
}
