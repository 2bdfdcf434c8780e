package domain

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUnderlying_PerformanceIdentity(t *testing.T) {
	prices := []struct{ initial, current float64 }{
		{100, 108}, {4500.25, 3150.175}, {17.3, 17.3}, {250, 0}, {1, 1e6},
	}
	for _, p := range prices {
		u := NewUnderlying("X", "X Corp", p.initial, p.current)
		assert.InDelta(t, p.current/p.initial-1, u.PerformancePct, 1e-9)

		u.SetCurrentPrice(p.current * 0.5)
		assert.InDelta(t, p.current*0.5/p.initial-1, u.PerformancePct, 1e-9)
		assert.InDelta(t, u.PerformancePct, u.Performance(), 1e-12)
	}
}

func TestBreachLog_MonotonicAndFirstDate(t *testing.T) {
	u := NewUnderlying("SPX", "S&P 500", 100, 55)
	assert.False(t, u.BarrierBreached())
	assert.Nil(t, u.BarrierBreachedDate())

	assert.True(t, u.RecordBreach(BreachEvent{Date: date(2025, 3, 10), Kind: BreachKindBarrier, ReferenceLevel: 0.55, LevelPct: 60}))
	// same day, same kind: ignored
	assert.False(t, u.RecordBreach(BreachEvent{Date: date(2025, 3, 10).Add(5 * time.Hour), Kind: BreachKindBarrier}))
	// a later observation does not move the first breach date
	assert.True(t, u.RecordBreach(BreachEvent{Date: date(2025, 4, 1), Kind: BreachKindBarrier, ReferenceLevel: 0.58, LevelPct: 60}))

	u.SetCurrentPrice(120)
	assert.True(t, u.BarrierBreached(), "price recovery must not reset the breach")
	require.NotNil(t, u.BarrierBreachedDate())
	assert.Equal(t, date(2025, 3, 10), *u.BarrierBreachedDate())

	// an earlier breach arriving late still becomes the first date
	u.RecordBreach(BreachEvent{Date: date(2025, 2, 1), Kind: BreachKindBarrier})
	assert.Equal(t, date(2025, 2, 1), *u.BarrierBreachedDate())

	_, ok := u.Breaches.FirstOf(BreachKindBarrier, date(2025, 1, 31))
	assert.False(t, ok, "breaches after the as-of date are not visible")
	first, ok := u.Breaches.FirstOf(BreachKindBarrier, date(2025, 3, 31))
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 1), first.Date)
}

func TestBreachLog_ConcurrentWritersKeepEarliest(t *testing.T) {
	log := &BreachLog{}
	var wg sync.WaitGroup
	for day := 28; day >= 1; day-- {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			log.Record(BreachEvent{Date: date(2025, 2, d), Kind: BreachKindKnockIn})
		}(day)
	}
	wg.Wait()

	first, ok := log.FirstDate()
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 1), first)
	assert.Len(t, log.Events(), 28)
}

func TestBasket_Validate(t *testing.T) {
	one := func(sym string) *Underlying { return NewUnderlying(sym, sym, 100, 100) }

	testCases := []struct {
		name   string
		basket *Basket
		valid  bool
	}{
		{"single with one", &Basket{Type: BasketSingle, Underlyings: []*Underlying{one("A")}}, true},
		{"worst of two", &Basket{Type: BasketWorstOf, Underlyings: []*Underlying{one("A"), one("B")}}, true},
		{"worst of one", &Basket{Type: BasketWorstOf, Underlyings: []*Underlying{one("A")}}, true},
		{"nil basket", nil, false},
		{"empty", &Basket{Type: BasketAverage}, false},
		{"single with two", &Basket{Type: BasketSingle, Underlyings: []*Underlying{one("A"), one("B")}}, false},
		{"unknown type", &Basket{Type: "median", Underlyings: []*Underlying{one("A")}}, false},
		{"nil underlying", &Basket{Type: BasketBestOf, Underlyings: []*Underlying{one("A"), nil}}, false},
		{"zero initial", &Basket{Type: BasketSingle, Underlyings: []*Underlying{NewUnderlying("A", "A", 0, 10)}}, false},
		{"duplicate symbol", &Basket{Type: BasketAverage, Underlyings: []*Underlying{one("A"), one("A")}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.basket.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			var basketErr *InvalidBasketError
			assert.True(t, errors.As(err, &basketErr), "expected InvalidBasketError, got %v", err)
		})
	}
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("Regular Income")
	require.NoError(t, err)
	assert.Equal(t, BucketRegularIncome, b)

	b, err = ParseBucket("capital-protection")
	require.NoError(t, err)
	assert.Equal(t, BucketCapitalProtection, b)

	_, err = ParseBucket("reverse_convertible")
	var unknown *UnknownBucketError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "reverse_convertible", unknown.Tag)
}

func TestTermSheet_Terms(t *testing.T) {
	sheet := TermSheet{Bucket: "boosted_growth", BoostedGrowth: &BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125}}
	terms, err := sheet.Terms()
	require.NoError(t, err)
	assert.Equal(t, BucketBoostedGrowth, terms.Bucket())

	_, err = TermSheet{Bucket: "capital_protection"}.Terms()
	var missing *MissingTermsForBucketError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, BucketCapitalProtection, missing.Bucket)

	_, err = TermSheet{Bucket: "twin_win", BoostedGrowth: &BoostedGrowthTerms{}}.Terms()
	var unknown *UnknownBucketError
	assert.True(t, errors.As(err, &unknown))
}

func TestMatchTerms_NilVariants(t *testing.T) {
	ri := func(*RegularIncomeTerms) (string, error) { return "ri", nil }
	cp := func(*CapitalProtectionTerms) (string, error) { return "cp", nil }
	bg := func(*BoostedGrowthTerms) (string, error) { return "bg", nil }

	got, err := MatchTerms[string](&CapitalProtectionTerms{}, ri, cp, bg)
	require.NoError(t, err)
	assert.Equal(t, "cp", got)

	var typedNil *RegularIncomeTerms
	_, err = MatchTerms[string](typedNil, ri, cp, bg)
	var missing *MissingTermsForBucketError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, BucketRegularIncome, missing.Bucket)

	_, err = MatchTerms[string](nil, ri, cp, bg)
	assert.True(t, errors.As(err, &missing))
}

func TestProduct_ResolveTerms(t *testing.T) {
	p := &ProductLifecycleData{Bucket: BucketRegularIncome, Terms: &BoostedGrowthTerms{}}
	_, err := p.ResolveTerms()
	var missing *MissingTermsForBucketError
	assert.True(t, errors.As(err, &missing), "terms of another bucket count as missing")

	p = &ProductLifecycleData{Bucket: "mystery"}
	_, err = p.ResolveTerms()
	var unknown *UnknownBucketError
	assert.True(t, errors.As(err, &unknown))

	p = &ProductLifecycleData{Bucket: BucketBoostedGrowth, Terms: &BoostedGrowthTerms{}}
	terms, err := p.ResolveTerms()
	require.NoError(t, err)
	assert.Equal(t, BucketBoostedGrowth, terms.Bucket())
}

func TestTermsValidate(t *testing.T) {
	assert.NoError(t, (&RegularIncomeTerms{CouponRatePA: 5.75, CouponFrequency: 4, ProtectionLevelPct: 70}).Validate())

	err := (&CapitalProtectionTerms{
		CapitalProtectionPct:  90,
		ParticipationStartPct: 0,
		ParticipationRatePct:  120,
		CapLevelPct:           Float(80),
		IssuerCall:            &IssuerCall{Enabled: true},
	}).Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)

	err = (&BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125, Observation: "weekly"}).Validate()
	assert.ErrorContains(t, err, "observation")
}

func TestProduct_CloneIsIndependent(t *testing.T) {
	u := NewUnderlying("SPX", "S&P 500", 100, 90)
	p := &ProductLifecycleData{
		ID:           "p1",
		Bucket:       BucketBoostedGrowth,
		Terms:        &BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125, ParticipationRatePct: Float(100)},
		Basket:       &Basket{Type: BasketSingle, Underlyings: []*Underlying{u}},
		TradeDate:    date(2024, 1, 15),
		MaturityDate: date(2026, 1, 15),
		Fixings:      []Fixing{{Date: date(2024, 7, 15), Level: 0.9}},
	}

	c, err := p.Clone()
	require.NoError(t, err)

	c.Basket.Underlyings[0].InitialPrice = 80
	c.Basket.Underlyings[0].SetCurrentPrice(50)
	c.Basket.Underlyings[0].RecordBreach(BreachEvent{Date: date(2025, 1, 1), Kind: BreachKindBarrier})
	c.Terms.(*BoostedGrowthTerms).BonusLevelPct = 200
	*c.Terms.(*BoostedGrowthTerms).ParticipationRatePct = 150
	c.Fixings[0].Level = 0.1

	assert.Equal(t, 100.0, u.InitialPrice)
	assert.Equal(t, 90.0, u.CurrentPrice)
	assert.False(t, u.BarrierBreached())
	assert.Equal(t, 125.0, p.Terms.(*BoostedGrowthTerms).BonusLevelPct)
	assert.Equal(t, 100.0, *p.Terms.(*BoostedGrowthTerms).ParticipationRatePct)
	assert.Equal(t, 0.9, p.Fixings[0].Level)
}

func TestProduct_MarshalJSON(t *testing.T) {
	u := NewUnderlying("SPX", "S&P 500", 100, 55)
	u.RecordBreach(BreachEvent{Date: date(2025, 3, 10), Kind: BreachKindBarrier})
	p := &ProductLifecycleData{
		ID:     "p1",
		Bucket: BucketBoostedGrowth,
		Terms:  &BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125},
		Basket: &Basket{Type: BasketSingle, Underlyings: []*Underlying{u}},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	terms := decoded["terms"].(map[string]any)
	assert.Equal(t, "boosted_growth", terms["bucket"])
	underlyings := decoded["basket"].(map[string]any)["underlyings"].([]any)
	first := underlyings[0].(map[string]any)
	assert.Equal(t, true, first["barrier_breached"])
	assert.Equal(t, "2025-03-10T00:00:00Z", first["barrier_breached_date"])
}

func TestDates(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), AddMonths(date(2024, 1, 31), 1))
	assert.Equal(t, date(2025, 2, 28), AddMonths(date(2024, 2, 29), 12))
	assert.Equal(t, date(2024, 4, 15), AddMonths(date(2024, 1, 15), 3))

	assert.Equal(t, 12, MonthsBetween(date(2024, 1, 15), date(2025, 1, 15)))
	assert.Equal(t, 11, MonthsBetween(date(2024, 1, 15), date(2025, 1, 14)))
	assert.Equal(t, 1, MonthsBetween(date(2024, 1, 31), date(2024, 2, 29)))
	assert.Equal(t, 365, DaysBetween(date(2025, 1, 1), date(2026, 1, 1)))
}
