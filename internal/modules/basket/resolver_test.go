package basket

import (
	"errors"
	"testing"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBasket(t domain.BasketType, prices ...float64) *domain.Basket {
	b := &domain.Basket{Type: t}
	for i, p := range prices {
		sym := string(rune('A' + i))
		b.Underlyings = append(b.Underlyings, domain.NewUnderlying(sym, sym, 100, p))
	}
	return b
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name        string
		basket      *domain.Basket
		driving     int
		worst, best int
		reference   float64
	}{
		{"single", makeBasket(domain.BasketSingle, 108), 0, 0, 0, 0.08},
		{"worst of", makeBasket(domain.BasketWorstOf, 110, 85, 95), 1, 1, 0, -0.15},
		{"best of", makeBasket(domain.BasketBestOf, 110, 85, 120), 2, 1, 2, 0.20},
		{"worst of tie goes to first", makeBasket(domain.BasketWorstOf, 90, 80, 80), 1, 1, 0, -0.20},
		{"best of tie goes to first", makeBasket(domain.BasketBestOf, 130, 80, 130), 0, 1, 0, 0.30},
		{"average", makeBasket(domain.BasketAverage, 110, 90, 130), NoDriver, 1, 2, 0.10},
		{"equally weighted", makeBasket(domain.BasketEquallyWeighted, 100, 80), NoDriver, 1, 0, -0.10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Resolve(tc.basket)
			require.NoError(t, err)
			assert.Equal(t, tc.driving, res.DrivingIndex)
			assert.Equal(t, tc.worst, res.WorstIndex)
			assert.Equal(t, tc.best, res.BestIndex)
			assert.InDelta(t, tc.reference, res.ReferencePerformancePct, 1e-9)
			assert.InDelta(t, 1+tc.reference, res.ReferenceLevel, 1e-9)
			assert.Len(t, res.PerUnderlyingPerformance, len(tc.basket.Underlyings))
		})
	}
}

func TestResolve_DrivingIndexIsExtreme(t *testing.T) {
	prices := [][]float64{
		{100, 100, 100},
		{55, 140, 55, 70},
		{101.5, 99.25, 100.75, 99.25},
	}
	for _, ps := range prices {
		worst, err := Resolve(makeBasket(domain.BasketWorstOf, ps...))
		require.NoError(t, err)
		best, err := Resolve(makeBasket(domain.BasketBestOf, ps...))
		require.NoError(t, err)

		for i, perf := range worst.PerUnderlyingPerformance {
			assert.LessOrEqual(t, worst.ReferencePerformancePct, perf)
			assert.GreaterOrEqual(t, best.ReferencePerformancePct, perf)
			if perf == worst.ReferencePerformancePct {
				assert.GreaterOrEqual(t, i, worst.DrivingIndex)
			}
			if perf == best.ReferencePerformancePct {
				assert.GreaterOrEqual(t, i, best.DrivingIndex)
			}
		}
	}
}

func TestResolve_InvalidBasket(t *testing.T) {
	testCases := []struct {
		name   string
		basket *domain.Basket
	}{
		{"nil", nil},
		{"empty", &domain.Basket{Type: domain.BasketWorstOf}},
		{"single with two", makeBasket(domain.BasketSingle, 100, 100)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Resolve(tc.basket)
			assert.Nil(t, res)
			var basketErr *domain.InvalidBasketError
			assert.True(t, errors.As(err, &basketErr))
		})
	}
}

func TestResolve_IgnoresStalePerformanceField(t *testing.T) {
	b := makeBasket(domain.BasketSingle, 100)
	b.Underlyings[0].CurrentPrice = 120 // set without SetCurrentPrice

	res, err := Resolve(b)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, res.ReferencePerformancePct, 1e-9)
}

func TestResolution_Driver(t *testing.T) {
	b := makeBasket(domain.BasketWorstOf, 100, 70)
	res, err := Resolve(b)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Driver(b).Symbol)
	assert.InDelta(t, 70.0, res.ReferenceLevelPct(), 1e-9)

	avg, err := Resolve(makeBasket(domain.BasketAverage, 100, 70))
	require.NoError(t, err)
	assert.False(t, avg.HasDriver())
	assert.Nil(t, avg.Driver(b))
}
