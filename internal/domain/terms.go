package domain

import "fmt"

// Terms is the immutable contract description of one product bucket.
//
// The interface is sealed: only *RegularIncomeTerms, *CapitalProtectionTerms and
// *BoostedGrowthTerms implement it. Components branch on it through MatchTerms,
// whose signature takes exactly one handler per variant.
type Terms interface {
	Bucket() Bucket
	Validate() error
	isTerms()
}

// RegularIncomeTerms pays periodic coupons with conditional capital protection.
type RegularIncomeTerms struct {
	CouponRatePA       float64  `json:"coupon_rate_pa" yaml:"coupon_rate_pa" msgpack:"coupon_rate_pa"`
	CouponFrequency    int      `json:"coupon_frequency" yaml:"coupon_frequency" msgpack:"coupon_frequency"` // coupons per year
	ConditionalCoupon  bool     `json:"conditional_coupon" yaml:"conditional_coupon" msgpack:"conditional_coupon"`
	ProtectionLevelPct float64  `json:"protection_level_pct" yaml:"protection_level_pct" msgpack:"protection_level_pct"`
	AutocallLevelPct   *float64 `json:"autocall_level_pct,omitempty" yaml:"autocall_level_pct,omitempty" msgpack:"autocall_level_pct,omitempty"`
}

func (t *RegularIncomeTerms) Bucket() Bucket { return BucketRegularIncome }
func (t *RegularIncomeTerms) isTerms()       {}

// AutocallEnabled reports whether an autocall level is configured.
func (t *RegularIncomeTerms) AutocallEnabled() bool {
	return t.AutocallLevelPct != nil
}

// Validate checks ranges. Coupon frequency is checked by the schedule generator
// so that a bad frequency only drops the schedule.
func (t *RegularIncomeTerms) Validate() error {
	var errs ValidationErrors
	if t.CouponRatePA < 0 {
		errs = append(errs, ValidationError{Field: "coupon_rate_pa", Message: "must be >= 0"})
	}
	if t.ProtectionLevelPct <= 0 {
		errs = append(errs, ValidationError{Field: "protection_level_pct", Message: "must be greater than 0"})
	}
	if t.AutocallLevelPct != nil && *t.AutocallLevelPct <= 0 {
		errs = append(errs, ValidationError{Field: "autocall_level_pct", Message: "must be greater than 0"})
	}
	return errs.orNil()
}

// KnockIn is an optional continuously monitored barrier that voids protection.
type KnockIn struct {
	Enabled  bool    `json:"enabled" yaml:"enabled" msgpack:"enabled"`
	LevelPct float64 `json:"level_pct" yaml:"level_pct" msgpack:"level_pct"`
}

// IssuerCall lets the issuer redeem early on discrete observation dates.
type IssuerCall struct {
	Enabled         bool    `json:"enabled" yaml:"enabled" msgpack:"enabled"`
	FrequencyMonths int     `json:"frequency_months" yaml:"frequency_months" msgpack:"frequency_months"`
	FirstCallMonth  int     `json:"first_call_month" yaml:"first_call_month" msgpack:"first_call_month"`
	ExitRatePA      float64 `json:"exit_rate_pa" yaml:"exit_rate_pa" msgpack:"exit_rate_pa"`
}

// CapitalProtectionTerms guarantees a floor plus participation above a start level.
type CapitalProtectionTerms struct {
	CapitalProtectionPct  float64     `json:"capital_protection_pct" yaml:"capital_protection_pct" msgpack:"capital_protection_pct"`
	ParticipationStartPct float64     `json:"participation_start_pct" yaml:"participation_start_pct" msgpack:"participation_start_pct"`
	ParticipationRatePct  float64     `json:"participation_rate_pct" yaml:"participation_rate_pct" msgpack:"participation_rate_pct"`
	CapLevelPct           *float64    `json:"cap_level_pct,omitempty" yaml:"cap_level_pct,omitempty" msgpack:"cap_level_pct,omitempty"`
	KnockIn               *KnockIn    `json:"knock_in,omitempty" yaml:"knock_in,omitempty" msgpack:"knock_in,omitempty"`
	IssuerCall            *IssuerCall `json:"issuer_call,omitempty" yaml:"issuer_call,omitempty" msgpack:"issuer_call,omitempty"`
}

func (t *CapitalProtectionTerms) Bucket() Bucket { return BucketCapitalProtection }
func (t *CapitalProtectionTerms) isTerms()       {}

func (t *CapitalProtectionTerms) KnockInEnabled() bool {
	return t.KnockIn != nil && t.KnockIn.Enabled
}

func (t *CapitalProtectionTerms) IssuerCallEnabled() bool {
	return t.IssuerCall != nil && t.IssuerCall.Enabled
}

func (t *CapitalProtectionTerms) HasCap() bool {
	return t.CapLevelPct != nil
}

func (t *CapitalProtectionTerms) Validate() error {
	var errs ValidationErrors
	if t.CapitalProtectionPct < 0 {
		errs = append(errs, ValidationError{Field: "capital_protection_pct", Message: "must be >= 0"})
	}
	if t.ParticipationStartPct <= 0 {
		errs = append(errs, ValidationError{Field: "participation_start_pct", Message: "must be greater than 0"})
	}
	if t.ParticipationRatePct < 0 {
		errs = append(errs, ValidationError{Field: "participation_rate_pct", Message: "must be >= 0"})
	}
	if t.CapLevelPct != nil && *t.CapLevelPct < t.CapitalProtectionPct {
		errs = append(errs, ValidationError{Field: "cap_level_pct", Message: "must be >= capital_protection_pct"})
	}
	if t.KnockInEnabled() && t.KnockIn.LevelPct <= 0 {
		errs = append(errs, ValidationError{Field: "knock_in.level_pct", Message: "must be greater than 0"})
	}
	if t.IssuerCallEnabled() {
		if t.IssuerCall.FrequencyMonths <= 0 {
			errs = append(errs, ValidationError{Field: "issuer_call.frequency_months", Message: "must be greater than 0"})
		}
		if t.IssuerCall.FirstCallMonth < 0 {
			errs = append(errs, ValidationError{Field: "issuer_call.first_call_month", Message: "must be >= 0"})
		}
	}
	return errs.orNil()
}

// BarrierObservation says when a Boosted Growth barrier is monitored.
type BarrierObservation string

const (
	ObservationContinuous BarrierObservation = "continuous"
	ObservationEuropean   BarrierObservation = "european"
)

// BoostedGrowthTerms pays a bonus unless the barrier is breached.
type BoostedGrowthTerms struct {
	BarrierLevelPct      float64            `json:"barrier_level_pct" yaml:"barrier_level_pct" msgpack:"barrier_level_pct"`
	BonusLevelPct        float64            `json:"bonus_level_pct" yaml:"bonus_level_pct" msgpack:"bonus_level_pct"`
	ParticipationRatePct *float64           `json:"participation_rate_pct,omitempty" yaml:"participation_rate_pct,omitempty" msgpack:"participation_rate_pct,omitempty"`
	Observation          BarrierObservation `json:"observation,omitempty" yaml:"observation,omitempty" msgpack:"observation,omitempty"`
}

func (t *BoostedGrowthTerms) Bucket() Bucket { return BucketBoostedGrowth }
func (t *BoostedGrowthTerms) isTerms()       {}

// European reports point-in-time barrier observation at the final date.
func (t *BoostedGrowthTerms) European() bool {
	return t.Observation == ObservationEuropean
}

// PostBreachParticipationPct is the gearing applied once the barrier is breached (default 100).
func (t *BoostedGrowthTerms) PostBreachParticipationPct() float64 {
	if t.ParticipationRatePct == nil {
		return 100
	}
	return *t.ParticipationRatePct
}

func (t *BoostedGrowthTerms) Validate() error {
	var errs ValidationErrors
	if t.BarrierLevelPct <= 0 {
		errs = append(errs, ValidationError{Field: "barrier_level_pct", Message: "must be greater than 0"})
	}
	if t.BonusLevelPct <= 0 {
		errs = append(errs, ValidationError{Field: "bonus_level_pct", Message: "must be greater than 0"})
	}
	if t.ParticipationRatePct != nil && *t.ParticipationRatePct < 0 {
		errs = append(errs, ValidationError{Field: "participation_rate_pct", Message: "must be >= 0"})
	}
	switch t.Observation {
	case "", ObservationContinuous, ObservationEuropean:
	default:
		errs = append(errs, ValidationError{Field: "observation", Message: fmt.Sprintf("unknown observation style %q", t.Observation)})
	}
	return errs.orNil()
}

// MatchTerms dispatches on the concrete terms variant. It is the only sanctioned
// way to branch per bucket: a new variant adds a parameter here, so every caller
// fails to compile until it handles the new bucket.
func MatchTerms[R any](
	t Terms,
	regularIncome func(*RegularIncomeTerms) (R, error),
	capitalProtection func(*CapitalProtectionTerms) (R, error),
	boostedGrowth func(*BoostedGrowthTerms) (R, error),
) (R, error) {
	var zero R
	switch v := t.(type) {
	case nil:
		return zero, &MissingTermsForBucketError{}
	case *RegularIncomeTerms:
		if v == nil {
			return zero, &MissingTermsForBucketError{Bucket: BucketRegularIncome}
		}
		return regularIncome(v)
	case *CapitalProtectionTerms:
		if v == nil {
			return zero, &MissingTermsForBucketError{Bucket: BucketCapitalProtection}
		}
		return capitalProtection(v)
	case *BoostedGrowthTerms:
		if v == nil {
			return zero, &MissingTermsForBucketError{Bucket: BucketBoostedGrowth}
		}
		return boostedGrowth(v)
	default:
		return zero, &UnknownBucketError{Tag: fmt.Sprintf("%T", t)}
	}
}

// TermSheet is the serialized form of Terms: a bucket tag plus the one
// populated variant. It is what JSON, YAML and the product store carry.
type TermSheet struct {
	Bucket            string                  `json:"bucket" yaml:"bucket" msgpack:"bucket"`
	RegularIncome     *RegularIncomeTerms     `json:"regular_income,omitempty" yaml:"regular_income,omitempty" msgpack:"regular_income,omitempty"`
	CapitalProtection *CapitalProtectionTerms `json:"capital_protection,omitempty" yaml:"capital_protection,omitempty" msgpack:"capital_protection,omitempty"`
	BoostedGrowth     *BoostedGrowthTerms     `json:"boosted_growth,omitempty" yaml:"boosted_growth,omitempty" msgpack:"boosted_growth,omitempty"`
}

// Terms resolves the sheet into the variant named by its bucket tag.
func (s TermSheet) Terms() (Terms, error) {
	bucket, err := ParseBucket(s.Bucket)
	if err != nil {
		return nil, err
	}
	switch bucket {
	case BucketRegularIncome:
		if s.RegularIncome == nil {
			return nil, &MissingTermsForBucketError{Bucket: bucket}
		}
		return s.RegularIncome, nil
	case BucketCapitalProtection:
		if s.CapitalProtection == nil {
			return nil, &MissingTermsForBucketError{Bucket: bucket}
		}
		return s.CapitalProtection, nil
	case BucketBoostedGrowth:
		if s.BoostedGrowth == nil {
			return nil, &MissingTermsForBucketError{Bucket: bucket}
		}
		return s.BoostedGrowth, nil
	}
	return nil, &UnknownBucketError{Tag: s.Bucket}
}

// SheetFor converts terms back into their serialized form.
func SheetFor(t Terms) (TermSheet, error) {
	return MatchTerms(t,
		func(ri *RegularIncomeTerms) (TermSheet, error) {
			return TermSheet{Bucket: string(BucketRegularIncome), RegularIncome: ri}, nil
		},
		func(cp *CapitalProtectionTerms) (TermSheet, error) {
			return TermSheet{Bucket: string(BucketCapitalProtection), CapitalProtection: cp}, nil
		},
		func(bg *BoostedGrowthTerms) (TermSheet, error) {
			return TermSheet{Bucket: string(BucketBoostedGrowth), BoostedGrowth: bg}, nil
		},
	)
}

// CloneTerms returns a deep copy of t.
func CloneTerms(t Terms) (Terms, error) {
	return MatchTerms(t,
		func(ri *RegularIncomeTerms) (Terms, error) {
			c := *ri
			c.AutocallLevelPct = cloneFloat(ri.AutocallLevelPct)
			return &c, nil
		},
		func(cp *CapitalProtectionTerms) (Terms, error) {
			c := *cp
			c.CapLevelPct = cloneFloat(cp.CapLevelPct)
			if cp.KnockIn != nil {
				ki := *cp.KnockIn
				c.KnockIn = &ki
			}
			if cp.IssuerCall != nil {
				ic := *cp.IssuerCall
				c.IssuerCall = &ic
			}
			return &c, nil
		},
		func(bg *BoostedGrowthTerms) (Terms, error) {
			c := *bg
			c.ParticipationRatePct = cloneFloat(bg.ParticipationRatePct)
			return &c, nil
		},
	)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v, for optional term fields.
func Float(v float64) *float64 {
	return &v
}
