package testing

import (
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/lifecycle"
)

// Date is a UTC calendar date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewRegularIncomeFixture is a one-year quarterly income note on a single index,
// 5.75% p.a., 70% protection, autocall at 110%. Current level is 108%.
func NewRegularIncomeFixture() lifecycle.ProductInput {
	return lifecycle.ProductInput{
		ID:       "ri-spx",
		Name:     "Quarterly Income Note on SPX",
		Currency: "USD",
		Notional: 100000,
		Terms: domain.TermSheet{
			Bucket: string(domain.BucketRegularIncome),
			RegularIncome: &domain.RegularIncomeTerms{
				CouponRatePA:       5.75,
				CouponFrequency:    4,
				ProtectionLevelPct: 70,
				AutocallLevelPct:   domain.Float(110),
			},
		},
		BasketType:     domain.BasketSingle,
		Underlyings:    []lifecycle.UnderlyingInput{{Symbol: "SPX", Name: "S&P 500", InitialPrice: 4800, CurrentPrice: 5184}},
		TradeDate:      Date(2024, 1, 15),
		MaturityDate:   Date(2025, 1, 15),
		SettlementDate: Date(2025, 1, 20),
	}
}

// NewCapitalProtectionFixture is a three-year 100% protected note with capped
// participation, a 60% knock-in and a semi-annual issuer call from month 6.
// Current level is 105%.
func NewCapitalProtectionFixture() lifecycle.ProductInput {
	return lifecycle.ProductInput{
		ID:       "cp-sx5e",
		Name:     "Protected Growth Note on SX5E",
		Currency: "EUR",
		Notional: 100000,
		Terms: domain.TermSheet{
			Bucket: string(domain.BucketCapitalProtection),
			CapitalProtection: &domain.CapitalProtectionTerms{
				CapitalProtectionPct:  100,
				ParticipationStartPct: 100,
				ParticipationRatePct:  100,
				CapLevelPct:           domain.Float(130),
				KnockIn:               &domain.KnockIn{Enabled: true, LevelPct: 60},
				IssuerCall:            &domain.IssuerCall{Enabled: true, FrequencyMonths: 6, FirstCallMonth: 6, ExitRatePA: 6},
			},
		},
		BasketType:   domain.BasketSingle,
		Underlyings:  []lifecycle.UnderlyingInput{{Symbol: "SX5E", Name: "Euro Stoxx 50", InitialPrice: 4000, CurrentPrice: 4200}},
		TradeDate:    Date(2024, 2, 1),
		MaturityDate: Date(2027, 2, 1),
	}
}

// NewBoostedGrowthFixture is a two-year worst-of bonus certificate with a 60%
// continuous barrier and a 125% bonus. The worst performer is at 90%.
func NewBoostedGrowthFixture() lifecycle.ProductInput {
	return lifecycle.ProductInput{
		ID:       "bg-sx5e-nky",
		Name:     "Bonus Certificate on SX5E/NKY",
		Currency: "EUR",
		Notional: 100000,
		Terms: domain.TermSheet{
			Bucket:        string(domain.BucketBoostedGrowth),
			BoostedGrowth: &domain.BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125},
		},
		BasketType: domain.BasketWorstOf,
		Underlyings: []lifecycle.UnderlyingInput{
			{Symbol: "SX5E", Name: "Euro Stoxx 50", InitialPrice: 4000, CurrentPrice: 3600},
			{Symbol: "NKY", Name: "Nikkei 225", InitialPrice: 30000, CurrentPrice: 33000},
		},
		TradeDate:    Date(2024, 3, 1),
		MaturityDate: Date(2026, 3, 2),
	}
}

// NewProductFixtures returns one fixture per bucket.
func NewProductFixtures() []lifecycle.ProductInput {
	return []lifecycle.ProductInput{
		NewRegularIncomeFixture(),
		NewCapitalProtectionFixture(),
		NewBoostedGrowthFixture(),
	}
}
