package scenarios

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(bucket domain.Bucket, terms domain.Terms, price float64) *domain.ProductLifecycleData {
	return &domain.ProductLifecycleData{
		ID:           "p1",
		Currency:     "USD",
		Notional:     250000,
		Bucket:       bucket,
		Terms:        terms,
		Basket:       &domain.Basket{Type: domain.BasketSingle, Underlyings: []*domain.Underlying{domain.NewUnderlying("SPX", "S&P 500", 100, price)}},
		TradeDate:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		MaturityDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func nodeIDs(f *ScenarioFlow) []string {
	var ids []string
	for _, n := range f.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestNarrate_RegularIncome(t *testing.T) {
	terms := &domain.RegularIncomeTerms{CouponRatePA: 5.75, CouponFrequency: 4, ProtectionLevelPct: 70}
	flow, err := Narrate(product(domain.BucketRegularIncome, terms, 95), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{NodeProtection}, nodeIDs(flow), "autocall node is omitted when disabled")
	node, ok := flow.Node(NodeProtection)
	require.True(t, ok)
	assert.Equal(t, "Cash Redemption", node.Yes.Title)
	assert.Equal(t, "Share Conversion", node.No.Title)
	assert.Contains(t, node.Yes.Example, "$105,750.00")
	assert.Contains(t, node.No.Example, "$60,750.00")

	terms.AutocallLevelPct = domain.Float(100)
	flow, err = Narrate(product(domain.BucketRegularIncome, terms, 95), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{NodeAutocall, NodeProtection}, nodeIDs(flow))
	node, _ = flow.Node(NodeAutocall)
	assert.Equal(t, "Early Redemption", node.Yes.Title)
	assert.Equal(t, "Product Continues", node.No.Title)
	assert.Contains(t, node.Yes.Example, "$102,875.00")
}

func TestNarrate_CapitalProtection(t *testing.T) {
	terms := &domain.CapitalProtectionTerms{CapitalProtectionPct: 90, ParticipationStartPct: 100, ParticipationRatePct: 120}
	flow, err := Narrate(product(domain.BucketCapitalProtection, terms, 80), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{NodeParticipation}, nodeIDs(flow))

	node, _ := flow.Node(NodeParticipation)
	assert.Equal(t, "Participated Gain", node.Yes.Title)
	assert.Equal(t, "Capital Protected", node.No.Title)
	assert.Contains(t, node.Yes.Example, "$138,000.00")
	assert.Contains(t, node.No.Example, "$90,000.00")

	terms.KnockIn = &domain.KnockIn{Enabled: true, LevelPct: 60}
	terms.IssuerCall = &domain.IssuerCall{Enabled: true, FrequencyMonths: 6, FirstCallMonth: 12, ExitRatePA: 5}
	flow, err = Narrate(product(domain.BucketCapitalProtection, terms, 80), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{NodeIssuerCall, NodeParticipation, NodeKnockIn}, nodeIDs(flow))

	call, _ := flow.Node(NodeIssuerCall)
	assert.Equal(t, "Early Redemption", call.Yes.Title)
	assert.Equal(t, "Product Continues", call.No.Title)
	assert.Contains(t, call.Yes.Example, "$95,000.00")

	ki, _ := flow.Node(NodeKnockIn)
	assert.Equal(t, "Protection Voided", ki.Yes.Title)
	assert.Equal(t, "Protection Intact", ki.No.Title)
	assert.Contains(t, ki.Yes.Example, "$45,000.00")
	assert.Contains(t, ki.No.Example, "$90,000.00")
}

func TestNarrate_BoostedGrowth(t *testing.T) {
	terms := &domain.BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125}
	flow, err := Narrate(product(domain.BucketBoostedGrowth, terms, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{NodeBarrier, NodeUpside}, nodeIDs(flow))

	barrier, _ := flow.Node(NodeBarrier)
	assert.Equal(t, "Barrier Breached", barrier.Yes.Title)
	assert.Equal(t, "Bonus Payout", barrier.No.Title)
	assert.Contains(t, barrier.Yes.Example, "$55,000.00")
	assert.Contains(t, barrier.No.Example, "$125,000.00")

	upside, _ := flow.Node(NodeUpside)
	assert.Equal(t, "Performance Payout", upside.Yes.Title)
	assert.Equal(t, "Bonus Payout", upside.No.Title)
	assert.Contains(t, upside.Yes.Example, "$140,000.00")
}

func TestNarrate_ExamplesIgnoreLivePrices(t *testing.T) {
	terms := &domain.BoostedGrowthTerms{BarrierLevelPct: 60, BonusLevelPct: 125}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	calm := product(domain.BucketBoostedGrowth, terms, 110)
	calmStatus, err := triggers.Evaluate(calm, nil, at)
	require.NoError(t, err)
	crashed := product(domain.BucketBoostedGrowth, terms, 40)
	crashedStatus, err := triggers.Evaluate(crashed, nil, at)
	require.NoError(t, err)

	a, err := Narrate(calm, calmStatus)
	require.NoError(t, err)
	b, err := Narrate(crashed, crashedStatus)
	require.NoError(t, err)

	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i].Yes.Example, b.Nodes[i].Yes.Example)
		assert.Equal(t, a.Nodes[i].No.Example, b.Nodes[i].No.Example)
	}

	barrier, _ := b.Node(NodeBarrier)
	var found bool
	for _, chip := range barrier.Meta {
		if chip.Label == "Barrier" && chip.Value == "Breached" {
			found = true
			assert.Equal(t, ToneNegative, chip.Tone)
		}
	}
	assert.True(t, found, "live breach is surfaced as a meta chip")
}

func TestNarrate_MissingTerms(t *testing.T) {
	_, err := Narrate(product(domain.BucketRegularIncome, nil, 100), nil)
	var missing *domain.MissingTermsForBucketError
	assert.True(t, errors.As(err, &missing))
}

func TestSampleBelow(t *testing.T) {
	testCases := []struct {
		pct, gap, expected float64
	}{
		{70, 15, 55},
		{15, 15, 7.5},
		{10, 15, 5},
		{3, 5, 1.5},
	}
	for _, tc := range testCases {
		got := sampleBelow(tc.pct, tc.gap)
		assert.Equal(t, tc.expected, got, "pct=%v gap=%v", tc.pct, tc.gap)
		assert.Greater(t, got, 0.0)
		assert.Less(t, got, tc.pct)
	}
}

func TestNarrate_LowThresholdsKeepExamplesPositive(t *testing.T) {
	testCases := []struct {
		name   string
		bucket domain.Bucket
		terms  domain.Terms
		node   string
		yes    string
	}{
		{
			name:   "regular income",
			bucket: domain.BucketRegularIncome,
			terms:  &domain.RegularIncomeTerms{CouponRatePA: 4, CouponFrequency: 4, ProtectionLevelPct: 10},
			node:   NodeProtection,
		},
		{
			name:   "knock-in",
			bucket: domain.BucketCapitalProtection,
			terms: &domain.CapitalProtectionTerms{
				CapitalProtectionPct:  90,
				ParticipationStartPct: 12,
				ParticipationRatePct:  100,
				KnockIn:               &domain.KnockIn{Enabled: true, LevelPct: 10},
			},
			node: NodeKnockIn,
			yes:  "$5,000.00",
		},
		{
			name:   "bonus barrier",
			bucket: domain.BucketBoostedGrowth,
			terms:  &domain.BoostedGrowthTerms{BarrierLevelPct: 4, BonusLevelPct: 110},
			node:   NodeBarrier,
			yes:    "$2,000.00",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flow, err := Narrate(product(tc.bucket, tc.terms, 100), nil)
			require.NoError(t, err)
			for _, n := range flow.Nodes {
				assert.NotRegexp(t, `-[\d$]`, n.Yes.Example, "node %s", n.ID)
				assert.NotRegexp(t, `-[\d$]`, n.No.Example, "node %s", n.ID)
			}
			node, ok := flow.Node(tc.node)
			require.True(t, ok)
			if tc.yes != "" {
				assert.Contains(t, node.Yes.Example, tc.yes)
			}
		})
	}
}
