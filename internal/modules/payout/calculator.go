// Package payout computes maturity and early-termination payouts per bucket.
//
// Every formula works on unrounded ratios; amounts are rounded half-up to
// two decimals only when the Result is built.
package payout

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/basket"
	"github.com/aristath/noteengine/internal/modules/coupons"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/aristath/noteengine/pkg/formulas"
)

// Branch names the payoff branch a result was computed under.
type Branch string

const (
	BranchAutocalled       Branch = "autocalled"
	BranchCashRedemption   Branch = "cash_redemption"
	BranchShareConversion  Branch = "share_conversion"
	BranchIssuerCalled     Branch = "issuer_called"
	BranchCapitalProtected Branch = "capital_protected"
	BranchParticipation    Branch = "participation"
	BranchParticipationCap Branch = "participation_capped"
	BranchProtectionVoided Branch = "protection_voided"
	BranchBonus            Branch = "bonus"
	BranchPerformance      Branch = "performance"
	BranchBarrierBreached  Branch = "barrier_breached"
)

// Result is a computed payout.
type Result struct {
	Bucket           domain.Bucket `json:"bucket"`
	Branch           Branch        `json:"branch"`
	Principal        float64       `json:"principal"`
	Amount           float64       `json:"amount"`
	ReturnPct        float64       `json:"return_pct"` // percent gain or loss on principal
	PaidCoupons      float64       `json:"paid_coupons,omitempty"`
	FinalLevel       float64       `json:"final_level"` // reference level used, ratio of initial
	Final            bool          `json:"final"`       // false while the product is still running
	EarlyTermination bool          `json:"early_termination"`
	Formula          string        `json:"formula"`
}

func newResult(bucket domain.Bucket, branch Branch, principal, raw, level float64, formula string) Result {
	return Result{
		Bucket:     bucket,
		Branch:     branch,
		Principal:  principal,
		Amount:     formulas.RoundMoney(raw),
		ReturnPct:  formulas.Round(formulas.RatioToPct(formulas.SafeDiv(raw, principal, 1)-1), 2),
		FinalLevel: level,
		Formula:    formula,
	}
}

func money(v float64) string {
	return formulas.FormatMoney(v, "")
}

// RegularIncomeInput holds what the Regular Income payoff depends on.
type RegularIncomeInput struct {
	Principal   float64
	FinalLevel  float64 // ratio of initial, 1.08 = +8%
	Terms       *domain.RegularIncomeTerms
	Autocalled  bool
	PaidCoupons float64
}

// RegularIncome pays principal plus coupons, or the basket level plus coupons once
// the final level is below protection. A level exactly on protection is protected.
func RegularIncome(in RegularIncomeInput) Result {
	breached := triggers.BelowLevel(in.FinalLevel, in.Terms.ProtectionLevelPct)

	var r Result
	switch {
	case in.Autocalled:
		r = newResult(domain.BucketRegularIncome, BranchAutocalled, in.Principal, in.Principal+in.PaidCoupons, in.FinalLevel,
			fmt.Sprintf("%s + %s coupons", money(in.Principal), money(in.PaidCoupons)))
		r.EarlyTermination = true
	case !breached:
		r = newResult(domain.BucketRegularIncome, BranchCashRedemption, in.Principal, in.Principal+in.PaidCoupons, in.FinalLevel,
			fmt.Sprintf("%s + %s coupons", money(in.Principal), money(in.PaidCoupons)))
	default:
		r = newResult(domain.BucketRegularIncome, BranchShareConversion, in.Principal, in.Principal*in.FinalLevel+in.PaidCoupons, in.FinalLevel,
			fmt.Sprintf("%s × %s + %s coupons", money(in.Principal), formulas.FormatRatioPct(in.FinalLevel), money(in.PaidCoupons)))
	}
	r.PaidCoupons = formulas.RoundMoney(in.PaidCoupons)
	return r
}

// CapitalProtectionInput holds what the Capital Protection payoff depends on.
type CapitalProtectionInput struct {
	Principal  float64
	FinalLevel float64
	Terms      *domain.CapitalProtectionTerms
	KnockedIn  bool
	Called     bool
	CallMonth  int
}

// CapitalProtection applies, in order: the issuer-call exit, the knock-in loss,
// then floor plus participation, capped when a cap is configured.
func CapitalProtection(in CapitalProtectionInput) Result {
	t := in.Terms
	protection := formulas.PctToRatio(t.CapitalProtectionPct)

	if in.Called && t.IssuerCall != nil {
		accrued := formulas.PctToRatio(t.IssuerCall.ExitRatePA) * float64(in.CallMonth) / 12
		r := newResult(domain.BucketCapitalProtection, BranchIssuerCalled, in.Principal, in.Principal*(protection+accrued), in.FinalLevel,
			fmt.Sprintf("%s × (%s + %s × %d/12)", money(in.Principal), formulas.FormatPct(t.CapitalProtectionPct), formulas.FormatPct(t.IssuerCall.ExitRatePA), in.CallMonth))
		r.EarlyTermination = true
		return r
	}

	if in.KnockedIn {
		return newResult(domain.BucketCapitalProtection, BranchProtectionVoided, in.Principal, in.Principal*in.FinalLevel, in.FinalLevel,
			fmt.Sprintf("%s × %s", money(in.Principal), formulas.FormatRatioPct(in.FinalLevel)))
	}

	if triggers.BelowLevel(in.FinalLevel, t.ParticipationStartPct) {
		return newResult(domain.BucketCapitalProtection, BranchCapitalProtected, in.Principal, in.Principal*protection, in.FinalLevel,
			fmt.Sprintf("%s × %s", money(in.Principal), formulas.FormatPct(t.CapitalProtectionPct)))
	}

	gainPct := (formulas.RatioToPct(in.FinalLevel) - t.ParticipationStartPct) * t.ParticipationRatePct / 100
	raw := in.Principal * (protection + formulas.PctToRatio(gainPct))
	formula := fmt.Sprintf("%s × (%s + %s)", money(in.Principal), formulas.FormatPct(t.CapitalProtectionPct), formulas.FormatPct(gainPct))
	if t.HasCap() {
		capped := in.Principal * formulas.PctToRatio(*t.CapLevelPct)
		if raw > capped {
			return newResult(domain.BucketCapitalProtection, BranchParticipationCap, in.Principal, capped, in.FinalLevel,
				fmt.Sprintf("min(%s, %s × %s)", formula, money(in.Principal), formulas.FormatPct(*t.CapLevelPct)))
		}
	}
	return newResult(domain.BucketCapitalProtection, BranchParticipation, in.Principal, raw, in.FinalLevel, formula)
}

// BoostedGrowthInput holds what the Boosted Growth payoff depends on.
type BoostedGrowthInput struct {
	Principal       float64
	FinalLevel      float64
	Terms           *domain.BoostedGrowthTerms
	BarrierBreached bool
}

// BoostedGrowth pays the greater of bonus and performance while the barrier holds,
// otherwise the (optionally geared) final level.
func BoostedGrowth(in BoostedGrowthInput) Result {
	t := in.Terms
	if in.BarrierBreached {
		rate := t.PostBreachParticipationPct()
		return newResult(domain.BucketBoostedGrowth, BranchBarrierBreached, in.Principal, in.Principal*in.FinalLevel*formulas.PctToRatio(rate), in.FinalLevel,
			fmt.Sprintf("%s × %s × %s", money(in.Principal), formulas.FormatRatioPct(in.FinalLevel), formulas.FormatPct(rate)))
	}

	levelPct := formulas.RatioToPct(in.FinalLevel)
	best := math.Max(t.BonusLevelPct, levelPct)
	branch := BranchBonus
	if levelPct > t.BonusLevelPct {
		branch = BranchPerformance
	}
	return newResult(domain.BucketBoostedGrowth, branch, in.Principal, in.Principal*formulas.PctToRatio(best), in.FinalLevel,
		fmt.Sprintf("%s × max(%s, %s)", money(in.Principal), formulas.FormatPct(t.BonusLevelPct), formulas.FormatPct(levelPct)))
}

// FinalLevel is the level a payout is computed on: the maturity fixing once the
// product has matured and one was recorded, otherwise the current reference level.
func FinalLevel(p *domain.ProductLifecycleData, res *basket.Resolution, at time.Time) float64 {
	if p.Matured(at) {
		if level, ok := p.FixingOn(p.MaturityDate); ok {
			return level
		}
	}
	return res.ReferenceLevel
}

// Calculate computes the payout of p under an evaluated trigger status.
// Before maturity the result is the payout the product would return if it ended today.
func Calculate(p *domain.ProductLifecycleData, res *basket.Resolution, st *triggers.Status, schedule []domain.CouponEntry) (*Result, error) {
	terms, err := p.ResolveTerms()
	if err != nil {
		return nil, err
	}
	if res == nil || st == nil {
		return nil, fmt.Errorf("payout for product %s needs a basket resolution and a trigger status", p.ID)
	}

	at := st.EvaluatedAt
	level := FinalLevel(p, res, at)

	result, err := domain.MatchTerms(terms,
		func(t *domain.RegularIncomeTerms) (Result, error) {
			autocalled := st.RegularIncome != nil && st.RegularIncome.AutocallTriggered
			return RegularIncome(RegularIncomeInput{
				Principal:   p.Notional,
				FinalLevel:  level,
				Terms:       t,
				Autocalled:  autocalled,
				PaidCoupons: coupons.PaidAmount(schedule),
			}), nil
		},
		func(t *domain.CapitalProtectionTerms) (Result, error) {
			in := CapitalProtectionInput{Principal: p.Notional, FinalLevel: level, Terms: t}
			if cp := st.CapitalProtection; cp != nil {
				in.KnockedIn = cp.KnockInTriggered
				in.Called = cp.IssuerCalled
				in.CallMonth = cp.CallMonth
			}
			return CapitalProtection(in), nil
		},
		func(t *domain.BoostedGrowthTerms) (Result, error) {
			in := BoostedGrowthInput{Principal: p.Notional, FinalLevel: level, Terms: t}
			if bg := st.BoostedGrowth; bg != nil {
				in.BarrierBreached = bg.BarrierBreached
			}
			return BoostedGrowth(in), nil
		},
	)
	if err != nil {
		return nil, err
	}

	result.Final = result.EarlyTermination || p.Matured(at)
	return &result, nil
}
