package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound_HalfUp(t *testing.T) {
	testCases := []struct {
		name     string
		value    float64
		places   int32
		expected float64
	}{
		{"quarterly coupon", 1437.5, 2, 1437.5},
		{"binary half", 2.675, 2, 2.68},
		{"half cent", 0.125, 2, 0.13},
		{"negative half away from zero", -0.125, 2, -0.13},
		{"integer places", 12.5, 0, 13},
		{"float noise", 138000.00000000003, 2, 138000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Round(tc.value, tc.places))
		})
	}
}

func TestRound_NonFinitePassThrough(t *testing.T) {
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 2), 1))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(140, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 2.0, SafeDiv(4, 2, 0))
	assert.Equal(t, -1.0, SafeDiv(4, 0, -1))
	assert.Equal(t, 7.0, SafeDiv(math.Inf(1), 1, 7))
}

func TestPerformance(t *testing.T) {
	assert.InDelta(t, 0.08, Performance(108, 100), 1e-9)
	assert.InDelta(t, -0.45, Performance(55, 100), 1e-9)
	assert.Equal(t, 0.0, Performance(10, 0))
}

func TestArgMinArgMax_TiesResolveToFirst(t *testing.T) {
	data := []float64{0.1, -0.2, 0.3, -0.2, 0.3}

	assert.Equal(t, 1, ArgMin(data))
	assert.Equal(t, 2, ArgMax(data))
	assert.Equal(t, -1, ArgMin(nil))
	assert.Equal(t, -1, ArgMax([]float64{}))
}

func TestMeanAndSum(t *testing.T) {
	assert.InDelta(t, 0.1, Mean([]float64{0.3, -0.1, 0.1}), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 5750.0, Sum([]float64{1437.5, 1437.5, 1437.5, 1437.5}), 1e-9)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$105,750.00", FormatMoney(105750, "USD"))
	assert.Equal(t, "€1,437.50", FormatMoney(1437.5, "eur"))
	assert.Equal(t, "SGD 55,000.00", FormatMoney(55000, "SGD"))
	assert.Equal(t, "-$1,234.50", FormatMoney(-1234.5, "USD"))
	assert.Equal(t, "138,000.00", FormatMoney(138000, ""))
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "70%", FormatPct(70))
	assert.Equal(t, "5.75%", FormatPct(5.75))
	assert.Equal(t, "12.35%", FormatPct(12.345))
	assert.Equal(t, "12.5%", FormatRatioPct(0.125))
	assert.Equal(t, "+8%", FormatSignedRatioPct(0.08))
	assert.Equal(t, "-45%", FormatSignedRatioPct(-0.45))
}
