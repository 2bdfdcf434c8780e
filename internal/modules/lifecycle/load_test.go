package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProductFile_RegularIncome(t *testing.T) {
	in, err := LoadProductFile("testdata/regular_income.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ri-spx", in.ID)
	assert.Equal(t, domain.BasketSingle, in.BasketType)
	require.NotNil(t, in.Terms.RegularIncome)
	assert.Equal(t, 5.75, in.Terms.RegularIncome.CouponRatePA)
	require.NotNil(t, in.Terms.RegularIncome.AutocallLevelPct)
	assert.Equal(t, 110.0, *in.Terms.RegularIncome.AutocallLevelPct)
	assert.True(t, in.TradeDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	p, err := Build(in, time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.BucketRegularIncome, p.Bucket)
}

func TestLoadProductFile_BreachHistory(t *testing.T) {
	in, err := LoadProductFile("testdata/boosted_growth.yaml")
	require.NoError(t, err)
	require.Len(t, in.Underlyings, 2)
	require.Len(t, in.Underlyings[0].Breaches, 1)

	at := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	p, err := Build(in, at)
	require.NoError(t, err)

	report, err := NewEngine(zerolog.Nop()).Evaluate(p, at)
	require.NoError(t, err)
	require.NotNil(t, report.Status.BoostedGrowth)
	assert.True(t, report.Status.BoostedGrowth.BarrierBreached)
	assert.Equal(t, "breached", string(report.Status.State()))
}

func TestLoadProductInput_RejectsUnknownFields(t *testing.T) {
	_, err := LoadProductInput(strings.NewReader("id: x\nnotionl: 100\n"))
	assert.Error(t, err)
}

func TestLoadProductFile_Missing(t *testing.T) {
	_, err := LoadProductFile("testdata/none.yaml")
	assert.Error(t, err)
}
